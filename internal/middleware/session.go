package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

// LoginPath is where clients send users without a usable session.
const LoginPath = "/login"

// ContextProfileKey stores the profile loaded by SessionGate.
const ContextProfileKey = "currentProfile"

// ProfileLoader resolves the profile behind a token.
type ProfileLoader interface {
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// SessionGate requires the token's profile to exist and be active. It must run after JWT.
// A missing or inactive profile answers 401 with a redirect to the login page.
func SessionGate(profiles ProfileLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.ErrorWithMeta(c, appErrors.ErrUnauthorized, loginRedirect())
			return
		}

		user, err := profiles.Profile(c.Request.Context(), claims.UserID)
		if err != nil {
			response.ErrorWithMeta(c, sessionError(err), loginRedirect())
			return
		}
		if user.SchoolID != claims.SchoolID || user.Role != claims.Role {
			// Role or school changed since the token was issued.
			response.ErrorWithMeta(c, appErrors.Clone(appErrors.ErrUnauthorized, "session is out of date"), loginRedirect())
			return
		}

		c.Set(ContextProfileKey, user)
		c.Next()
	}
}

// Profile returns the profile loaded by SessionGate.
func Profile(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextProfileKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func sessionError(err error) error {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Code {
	case appErrors.ErrProfileMissing.Code:
		return appErr
	case appErrors.ErrInactiveAccount.Code:
		return appErrors.Wrap(err, appErr.Code, http.StatusUnauthorized, appErr.Message)
	default:
		return appErr
	}
}
