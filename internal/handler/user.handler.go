package handler

import (
	"net/http"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/gin-gonic/gin"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	filter := repo.UserFilter{Role: domain.Role(c.Query("role")), Search: c.Query("search")}
	users, err := h.users.List(c.Request.Context(), actorFrom(c), filter, intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{
			ID:        u.ID.String(),
			Email:     u.Email,
			FullName:  u.FullName,
			Phone:     u.Phone,
			Role:      string(u.Role),
			CreatedAt: u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}
