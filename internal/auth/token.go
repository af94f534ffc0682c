package auth

import (
	"errors"
	"time"

	"courtmaster/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and validates HS256 bearer tokens. Login lives elsewhere; this
// service only trusts tokens signed with the shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Mint(user *domain.User, now time.Time) (string, error) {
	claims := Claims{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses tokenStr and returns the actor it identifies.
func (t *Tokens) Validate(tokenStr string) (domain.Actor, error) {
	if tokenStr == "" {
		return domain.Actor{}, errors.New("missing token")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.Actor{}, errors.New("invalid user id in token")
	}
	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleCustomer, domain.RoleStaff, domain.RoleOwner:
	default:
		return domain.Actor{}, errors.New("unknown role in token")
	}
	return domain.Actor{UserID: userID, Role: role}, nil
}
