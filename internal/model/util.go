package model

import (
	"fmt"

	"github.com/google/uuid"
)

// generatePaymentReference creates a gateway-safe unique transaction reference
func generatePaymentReference() string {
	return fmt.Sprintf("pay_%s", uuid.New().String())
}
