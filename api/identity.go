package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserEmail = "X-User-Email"
	HeaderUserRoles = "X-User-Roles"
	RoleAdmin       = "ROLE_ADMIN"

	identityKey = "identity"
)

// Identity is the caller as asserted by the gateway in front of the service.
type Identity struct {
	Email string
	Admin bool
}

func (i Identity) Owns(email string) bool {
	return i.Admin || strings.EqualFold(i.Email, email)
}

// RequireIdentity rejects requests without an X-User-Email header.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.GetHeader(HeaderUserEmail))
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserEmail + " header"})
			return
		}
		c.Set(identityKey, Identity{Email: email, Admin: hasRole(c.GetHeader(HeaderUserRoles), RoleAdmin)})
		c.Next()
	}
}

// RequireAdmin must run after RequireIdentity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identityFrom(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "admin role required"})
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}

func hasRole(header, role string) bool {
	for _, r := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, errorResponse{Error: "booking belongs to another user"})
}
