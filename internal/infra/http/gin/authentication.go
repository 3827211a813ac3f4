package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	domainbooking "staybook/internal/domain/booking"
)

const principalContextKey = "staybook.principal"

// Claims are issued by the identity service. Role is one of guest, host
// or admin; the system actor never arrives over HTTP.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type principal struct {
	ID   string
	Role domainbooking.ActorType
}

// Actor is the identity the coordinator authorizes against.
func (p principal) Actor() domainbooking.Actor {
	return domainbooking.Actor{Type: p.Role, ID: p.ID}
}

type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
}

// Handle attaches a principal when a valid bearer token is present. Routes
// decide on their own whether one is required.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	p, err := m.resolve(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, p)
	c.Next()
}

func (m AuthMiddleware) resolve(raw string) (principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return principal{}, err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return principal{}, errors.New("token without subject")
	}
	role, err := domainbooking.ParseActorType(claims.Role)
	if err != nil {
		return principal{}, err
	}
	if role == domainbooking.ActorSystem {
		return principal{}, fmt.Errorf("role %q not accepted over http", claims.Role)
	}
	return principal{ID: subject, Role: role}, nil
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireRole answers 401 without a principal. No roles accepts any.
func requireRole(c *gin.Context, roles ...domainbooking.ActorType) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if len(roles) == 0 {
		return p, true
	}
	for _, r := range roles {
		if p.Role == r {
			return p, true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
	return principal{}, false
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
