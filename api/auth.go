package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxOwnerKey = "owner_id"
	ctxRoleKey  = "owner_role"
)

var errNoSecret = errors.New("authentication is not configured")

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. The subject claim is the
// owner id used for session persistence.
type Authenticator struct {
	secret    []byte
	adminRole string
}

func NewAuthenticator(secret, adminRole string) *Authenticator {
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Authenticator{secret: []byte(secret), adminRole: adminRole}
}

func (a *Authenticator) Sign(subject, role string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errNoSecret
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, errNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	// browsers cannot set headers on a websocket handshake
	return c.Query("token")
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: errorDetail{Message: msg, Code: "unauthorized"}})
}

// Identify attaches the caller's identity when a token is present. Requests
// without a token continue anonymously; a bad token is rejected.
func (a *Authenticator) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.Next()
			return
		}
		claims, err := a.Parse(tokenString)
		if err != nil {
			unauthorized(c, "missing or invalid token")
			return
		}
		c.Set(ctxOwnerKey, claims.Subject)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if OwnerID(c) == "" {
			unauthorized(c, "missing or invalid token")
			return
		}
		c.Next()
	}
}

func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if OwnerID(c) == "" {
			unauthorized(c, "missing or invalid token")
			return
		}
		if c.GetString(ctxRoleKey) != a.adminRole {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: errorDetail{Message: "admin role required", Code: "forbidden"}})
			return
		}
		c.Next()
	}
}

// OwnerID returns the authenticated subject, or "" for anonymous callers.
func OwnerID(c *gin.Context) string {
	return c.GetString(ctxOwnerKey)
}
