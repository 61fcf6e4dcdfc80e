package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserInfo — данные пользователя из проверенного токена
type UserInfo struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type Verifier struct {
	signingKey []byte
}

func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{signingKey: []byte(cfg.SigningKey)}
}

// VerifyToken проверяет JWT из заголовка Authorization и возвращает
// информацию о пользователе. Принимается как голый токен, так и
// схема Bearer.
func (v *Verifier) VerifyToken(r *http.Request) (*UserInfo, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return nil, fmt.Errorf("no authorization header")
	}

	authToken = strings.TrimPrefix(authToken, "Bearer ")

	token, err := jwt.ParseWithClaims(authToken, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("token has no user id")
	}

	return &UserInfo{ID: userID, Role: claims.Role}, nil
}

type contextKey string

const userContextKey contextKey = "authUser"

func WithUser(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userContextKey).(*UserInfo)
	return user, ok
}
