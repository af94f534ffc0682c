package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"courtmaster/internal/domain"

	"github.com/google/uuid"
)

type UserRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// UpsertByEmail creates the user or refreshes name/phone/role, returning the stored row.
	UpsertByEmail(ctx context.Context, user *domain.User) (*domain.User, error)
	List(ctx context.Context, filter UserFilter, limit, offset int) ([]domain.User, error)
}

// UserFilter narrows a staff user listing. Search matches name, email or phone.
type UserFilter struct {
	Role   domain.Role
	Search string
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, phone, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) UpsertByEmail(ctx context.Context, in *domain.User) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, phone, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone, role = EXCLUDED.role
		RETURNING id, email, full_name, phone, role, created_at`,
		in.ID, in.Email, in.FullName, in.Phone, in.Role, in.CreatedAt,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context, f UserFilter, limit, offset int) ([]domain.User, error) {
	query := `SELECT id, email, full_name, phone, role, created_at FROM users WHERE 1=1`
	var args []any
	if f.Role != "" {
		args = append(args, f.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (full_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n)
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
