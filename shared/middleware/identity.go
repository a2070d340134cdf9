package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CustomerIdentity attaches a cart identity to the request. A logged-in
// customer's JWT subject takes precedence; anonymous shoppers carry an
// X-Session-ID header. When neither is present a fresh session id is minted
// and echoed back so the client can persist it.
//
// The identity is an opaque string scoped per tenant; two tenants can both
// see the same session id without their carts colliding.
func CustomerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetString("user_id"); userID != "" {
			c.Set("cart_identity", "user:"+userID)
			c.Next()
			return
		}

		sessionID := c.GetHeader("X-Session-ID")
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Header("X-Session-ID", sessionID)
		}

		c.Set("cart_identity", "session:"+sessionID)
		c.Next()
	}
}

// GetCartIdentity returns the cart identity attached to this request
func GetCartIdentity(c *gin.Context) (string, error) {
	identity := c.GetString("cart_identity")
	if identity == "" {
		return "", fmt.Errorf("cart identity not set for this request")
	}
	return identity, nil
}
