package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const (
	// ContextKeyFirebaseUID is the key for the Firebase UID in the Gin context
	ContextKeyFirebaseUID = "firebase_uid"
	// ContextKeyUserID is the key for the internal user UUID in the Gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the verified email from the token
	ContextKeyEmail = "email"
	// ContextKeyAdmin is set when the caller may use the admin console
	ContextKeyAdmin = "is_admin"

	adminClaim = "admin"
)

// TokenVerifier checks Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware validates Firebase ID tokens and injects the caller into context
type AuthMiddleware struct {
	verifier TokenVerifier
	admins   map[string]bool
}

// NewAuthMiddleware creates a Firebase-backed auth middleware. adminEmails
// grants admin access to accounts that do not carry the admin claim.
func NewAuthMiddleware(projectID string, adminEmails []string) (*AuthMiddleware, error) {
	ctx := context.Background()

	var app *firebase.App
	var err error

	if projectID != "" {
		conf := &firebase.Config{ProjectID: projectID}
		app, err = firebase.NewApp(ctx, conf)
	} else {
		// Falls back to GOOGLE_APPLICATION_CREDENTIALS or default credentials
		app, err = firebase.NewApp(ctx, nil, option.WithoutAuthentication())
	}
	if err != nil {
		return nil, err
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}

	return NewAuthMiddlewareWithVerifier(client, adminEmails), nil
}

func NewAuthMiddlewareWithVerifier(verifier TokenVerifier, adminEmails []string) *AuthMiddleware {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &AuthMiddleware{verifier: verifier, admins: admins}
}

// Authenticate is the Gin middleware handler
func (am *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
			})
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization header format",
			})
			return
		}

		token, err := am.verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			log.Warn().Err(err).Msg("Failed to verify Firebase token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyFirebaseUID, token.UID)

		email := verifiedEmail(token)
		if email != "" {
			c.Set(ContextKeyEmail, email)
		}
		c.Set(ContextKeyAdmin, am.isAdmin(token, email))

		c.Next()
	}
}

// verifiedEmail is empty unless the provider confirmed the address
func verifiedEmail(token *auth.Token) string {
	if verified, _ := token.Claims["email_verified"].(bool); !verified {
		return ""
	}
	email, _ := token.Claims["email"].(string)
	return email
}

func (am *AuthMiddleware) isAdmin(token *auth.Token, email string) bool {
	if claim, ok := token.Claims[adminClaim].(bool); ok && claim {
		return true
	}
	return email != "" && am.admins[strings.ToLower(email)]
}

// RequireAdmin must run after Authenticate
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetFirebaseUID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !IsAdmin(c) {
			log.Warn().Str("email", GetEmail(c)).Str("path", c.Request.URL.Path).Msg("Admin access denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// GetFirebaseUID extracts the Firebase UID from the Gin context
func GetFirebaseUID(c *gin.Context) string {
	return c.GetString(ContextKeyFirebaseUID)
}

// GetUserID extracts the internal user UUID from the Gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextKeyAdmin)
}
