package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AccessClaims is the token payload issued to dashboard users.
type AccessClaims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
}

func (m *ApiHandler) parseAccessToken(tokenStr string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.JwtSigningKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	out := &AccessClaims{}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = int64(iat)
	}

	return out, nil
}

// authMiddleware rejects requests without a valid bearer token. Routes that
// mutate state or reach external services sit behind it; read-only dashboard
// routes do not.
func (m *ApiHandler) authMiddleware(ctx *gin.Context) {
	header := ctx.GetHeader("Authorization")
	if header == "" {
		returnErrorJsonCode(fmt.Errorf("missing authorization header"), ctx, 401)
		return
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	claims, err := m.parseAccessToken(tokenStr)
	if err != nil {
		returnErrorJsonCode(err, ctx, 401)
		return
	}

	ctx.Set("claims", claims)
	ctx.Next()
}
