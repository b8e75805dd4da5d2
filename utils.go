package checkout

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewAttemptID generates a unique orchestration attempt identifier.
//
// Format: "att_" + UUID v4 without hyphens (32 hex chars)
func NewAttemptID() string {
	return "att_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ValidateVariant performs basic validation on a variant descriptor
func ValidateVariant(v Variant) error {
	switch v.Kind {
	case FunnelOptionA, FunnelOptionB, FunnelUpsell:
	default:
		return fmt.Errorf("unsupported funnel kind: %q", v.Kind)
	}
	if v.Endpoint == "" {
		return fmt.Errorf("variant endpoint is required")
	}
	if len(v.Items) == 0 {
		return fmt.Errorf("variant requires at least one item")
	}
	for _, item := range v.Items {
		if item.ID == "" {
			return fmt.Errorf("item id is required")
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %s: quantity must be positive", item.ID)
		}
		if item.Price < 0 {
			return fmt.Errorf("item %s: price must not be negative", item.ID)
		}
	}
	return nil
}
