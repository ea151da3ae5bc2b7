package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// RiderIDHeader carries the authenticated rider's ID.
	RiderIDHeader = "X-Rider-ID"

	// OperatorKeyHeader carries the shared key of operations tooling.
	OperatorKeyHeader = "X-Operator-Key"

	callerKey   = "caller_rider_id"
	operatorKey = "caller_operator"
)

var (
	// ErrNoIdentity is returned when a request carries no rider identity.
	ErrNoIdentity = errors.New("missing rider identity")

	// ErrNoOperator is returned when an operations route lacks a valid operator key.
	ErrNoOperator = errors.New("missing or invalid operator key")
)

// Identity resolves the rider making a request.
type Identity interface {
	RiderID(c *gin.Context) (string, error)
}

// HeaderIdentity trusts the X-Rider-ID header set by the upstream gateway.
type HeaderIdentity struct{}

// RiderID returns the header value or ErrNoIdentity.
func (HeaderIdentity) RiderID(c *gin.Context) (string, error) {
	id := c.GetHeader(RiderIDHeader)
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

// Authenticate records the caller's rider ID when one is present. Routes that
// need a caller add RequireRider, RequireSelf or RequireRiderOrOperator.
func Authenticate(identity Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := identity.RiderID(c)
		if err == nil {
			c.Set(callerKey, id)
		} else if !errors.Is(err, ErrNoIdentity) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// RequireRider rejects requests without a rider identity.
func RequireRider() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRiderID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrNoIdentity.Error()})
			return
		}
		c.Next()
	}
}

// RequireSelf rejects requests where the rider in the path param is not the caller.
func RequireSelf(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerRiderID(c)
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrNoIdentity.Error()})
			return
		}
		if c.Param(param) != caller {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not authorized"})
			return
		}
		c.Next()
	}
}

// RequireOperator rejects requests that do not carry the operator key. An
// empty key closes the route.
func RequireOperator(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !markOperator(c, key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrNoOperator.Error()})
			return
		}
		c.Next()
	}
}

// RequireRiderOrOperator admits an authenticated rider or an operator.
func RequireRiderOrOperator(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRiderID(c) == "" && !markOperator(c, key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrNoIdentity.Error()})
			return
		}
		c.Next()
	}
}

func markOperator(c *gin.Context, key string) bool {
	got := c.GetHeader(OperatorKeyHeader)
	if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
		return false
	}
	c.Set(operatorKey, true)
	return true
}

// IsOperator reports whether the request was admitted with the operator key.
func IsOperator(c *gin.Context) bool {
	return c.GetBool(operatorKey)
}

// CallerRiderID returns the authenticated rider ID, or "" when there is none.
func CallerRiderID(c *gin.Context) string {
	return c.GetString(callerKey)
}
