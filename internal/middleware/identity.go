package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/model"
)

// Identity is the authenticated caller attached to a request.  A request
// without one is anonymous.
type Identity struct {
	ID                 string
	Role               model.Role
	FirstLogin         bool
	MustChangePassword bool
}

const identityKey = "identity"

type ctxKey struct{}

// SetIdentity attaches id to both the echo context and the request context.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
	r := c.Request()
	c.SetRequest(r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
}

// IdentityOf returns the identity set by Authenticate.  ok is false for
// anonymous requests.
func IdentityOf(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// IdentityFrom reads the identity from a request context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
