package service

import (
	"context"

	"courtmaster/internal/domain"
	"courtmaster/internal/repo"
)

type UserService interface {
	// List is the staff user directory, optionally filtered by role and a search term.
	List(ctx context.Context, actor domain.Actor, filter repo.UserFilter, limit, offset int) ([]domain.User, error)
}

type userService struct {
	userRepo repo.UserRepo
}

func NewUserService(userRepo repo.UserRepo) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) List(ctx context.Context, actor domain.Actor, filter repo.UserFilter, limit, offset int) ([]domain.User, error) {
	if !actor.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	switch filter.Role {
	case "", domain.RoleCustomer, domain.RoleStaff, domain.RoleOwner:
	default:
		return nil, domain.ErrInvalidRole
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, filter, limit, offset)
}
