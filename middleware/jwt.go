package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rendiconto/config"
	"rendiconto/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middlewares
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// Rejection reasons carried in the "error" field of 401/403 responses
const (
	ReasonMissingCredential        = "MissingCredential"
	ReasonInvalidCredential        = "InvalidCredential"
	ReasonExpiredCredential        = "ExpiredCredential"
	ReasonUnknownOrInactiveSubject = "UnknownOrInactiveSubject"
	ReasonRoleNotPermitted         = "RoleNotPermitted"
	ReasonNotOwner                 = "NotOwner"
)

var (
	// ErrTokenMalformed bad shape, bad signature or unexpected algorithm
	ErrTokenMalformed = errors.New("token non valido")
	// ErrTokenExpired signature valid but past exp
	ErrTokenExpired = errors.New("token scaduto")
)

var (
	jwtSecret []byte
	jwtExpire = 7 * 24 * time.Hour
)

// Claims access token payload
type Claims struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserLookup resolves the token subject
type UserLookup interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// InitJWT loads the signing secret and token lifetime
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
	if cfg.JWT.ExpireTime > 0 {
		jwtExpire = cfg.JWT.ExpireTime
	}
}

// IssueToken signs a token valid for the configured lifetime
func IssueToken(userID uint, role string) (string, error) {
	return GenerateToken(userID, role, jwtExpire)
}

// GenerateToken signs an HS256 token valid for ttl
func GenerateToken(userID uint, role string, ttl time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt non inizializzato")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseToken verifies signature and expiry. It returns ErrTokenExpired or ErrTokenMalformed.
func ParseToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrTokenMalformed
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("algoritmo inatteso: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// JWTAuth requires a valid bearer token for an existing active user
func JWTAuth(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, reason := authenticate(c, users)
		if reason != "" {
			abort(c, http.StatusUnauthorized, reason, unauthorizedMessage(reason))
			return
		}
		c.Set(ContextUserID, u.ID)
		c.Set(ContextUserRole, u.Role)
		c.Next()
	}
}

// OptionalJWTAuth attaches the caller identity when a valid token is present and never rejects
func OptionalJWTAuth(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, reason := authenticate(c, users); reason == "" {
			c.Set(ContextUserID, u.ID)
			c.Set(ContextUserRole, u.Role)
		}
		c.Next()
	}
}

// RequireRole admits only callers whose role is listed. Use after JWTAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetCurrentUserRole(c)] {
			abort(c, http.StatusForbidden, ReasonRoleNotPermitted, "Permessi insufficienti")
			return
		}
		c.Next()
	}
}

// RequireOwnership rejects requests whose path parameter names another user. Use after JWTAuth.
func RequireOwnership(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(param)
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uint(id) != GetCurrentUserID(c) {
			abort(c, http.StatusForbidden, ReasonNotOwner, "Accesso non autorizzato a questa risorsa")
			return
		}
		c.Next()
	}
}

// GetCurrentUserID caller id, 0 when unauthenticated
func GetCurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetCurrentUserRole caller role, empty when unauthenticated
func GetCurrentUserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}

func authenticate(c *gin.Context, users UserLookup) (*models.User, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, ReasonMissingCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return nil, ReasonMissingCredential
	}

	claims, err := ParseToken(strings.TrimSpace(parts[1]))
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, ReasonExpiredCredential
	case err != nil:
		return nil, ReasonInvalidCredential
	}

	u, err := users.Get(c.Request.Context(), claims.UserID)
	if err != nil || u == nil || !u.IsActive {
		return nil, ReasonUnknownOrInactiveSubject
	}
	return u, ""
}

func unauthorizedMessage(reason string) string {
	switch reason {
	case ReasonMissingCredential:
		return "Token di accesso mancante"
	case ReasonExpiredCredential:
		return "Token scaduto"
	case ReasonUnknownOrInactiveSubject:
		return "Utente non trovato o disattivato"
	default:
		return "Token non valido"
	}
}

func abort(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   reason,
		"message": message,
	})
}
