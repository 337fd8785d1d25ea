package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/utils"
)

// TokenVerifier checks a signed token of the given kind.
type TokenVerifier interface {
	Verify(raw string, kind utils.TokenKind) (*utils.Claims, error)
}

// SessionConfig names the cookies Authenticate looks at.
type SessionConfig struct {
	AccessCookie  string
	RefreshCookie string
	// RefreshFallback lets a request authenticate with the refresh cookie
	// when no access token is present.
	RefreshFallback bool
}

// Authenticate admits requests carrying a valid access token, taken from the
// Authorization header, then the access cookie, then (when enabled) the
// refresh cookie.  Anything else is answered with 401.
func Authenticate(v TokenVerifier, cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, kind := candidateToken(c, cfg)
			if raw == "" {
				return unauthorized(c)
			}
			claims, err := v.Verify(raw, kind)
			if err != nil {
				return unauthorized(c)
			}
			h := claims.Holder()
			SetIdentity(c, Identity{
				ID:                 h.ID,
				Role:               h.Role,
				FirstLogin:         h.FirstLogin,
				MustChangePassword: h.MustChangePassword,
			})
			return next(c)
		}
	}
}

func candidateToken(c echo.Context, cfg SessionConfig) (string, utils.TokenKind) {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if raw, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(raw) != "" {
			return strings.TrimSpace(raw), utils.KindAccess
		}
	}
	if cfg.AccessCookie != "" {
		if ck, err := c.Cookie(cfg.AccessCookie); err == nil && ck.Value != "" {
			return ck.Value, utils.KindAccess
		}
	}
	if cfg.RefreshFallback && cfg.RefreshCookie != "" {
		if ck, err := c.Cookie(cfg.RefreshCookie); err == nil && ck.Value != "" {
			return ck.Value, utils.KindRefresh
		}
	}
	return "", ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
}
