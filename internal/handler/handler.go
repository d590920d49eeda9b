package handler

import (
	"net/http"
	"tenancy-service/pkg/config"
	"tenancy-service/pkg/gateway"
	"tenancy-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
)

var (
	cfg           *config.Config
	gatewayClient *gateway.Client
)

// Init wires the handler package with configuration and the gateway client
func Init(c *config.Config) {
	cfg = c
	gatewayClient = gateway.NewClient(c.Gateway.BaseURL, c.Gateway.SecretKey)
}

// SetGatewayClient swaps the gateway client. Used by tests.
func SetGatewayClient(c *gateway.Client) {
	gatewayClient = c
}

// currentUser extracts the authenticated user's claims from the context
func currentUser(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get("user").(*jwtutil.UserClaims)
	return claims, ok
}

// errJSON writes the standard error envelope
func errJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"error":   code,
		"message": message,
	})
}

// unauthorized is the shared response for requests without valid claims
func unauthorized(c echo.Context) error {
	return errJSON(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
}
