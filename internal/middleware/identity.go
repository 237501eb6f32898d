package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// CurrentIdentity returns the identity stored by JWTAuth. The second
// return value is false when no authenticated identity is present.
func CurrentIdentity(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// identityTag returns a short string form of the current identity for
// rate-limit and cache key construction. Unauthenticated requests
// are tagged "anon".
func identityTag(c echo.Context) string {
	id, ok := CurrentIdentity(c)
	if !ok {
		return "anon"
	}
	return string(id.Role) + ":" + strconv.FormatUint(id.UserID, 10)
}
