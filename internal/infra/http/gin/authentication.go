package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	principalContextKey = "donateo.principal"
	headerUserID        = "X-User-ID"
	headerUserRole      = "X-User-Role"
	roleAdmin           = "admin"
)

type principal struct {
	ID    string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

func (p principal) IsAdmin() bool { return p.HasRole(roleAdmin) }

// tokenClaims are issued by the auth service: sub is the user id and role is
// a single role or a comma-separated list.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the caller. With a secret it verifies HS256 bearer
// tokens; without one it trusts the identity headers set by the gateway.
type AuthMiddleware struct {
	Secret string
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	if m.Secret == "" {
		if id := strings.TrimSpace(c.GetHeader(headerUserID)); id != "" {
			setPrincipal(c, principal{ID: id, Roles: splitRoles(c.GetHeader(headerUserRole))})
		}
		c.Next()
		return
	}
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.Next()
		return
	}
	claims, err := m.parse(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{ID: claims.Subject, Roles: splitRoles(claims.Role)})
	c.Next()
}

func (m AuthMiddleware) parse(raw string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(m.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
	c.Set("user_id", p.ID)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
