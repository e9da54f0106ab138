package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
)

// PriceScale and maxPrice match the buyer_price NUMERIC(12, 2) column.
const PriceScale = 2

var maxPrice = decimal.New(1, 10)

// IsValidUUID accepts only the canonical 36 character form.
func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	return uuid.Validate(s) == nil
}

// TrimToNil trims s and returns nil when nothing is left, so optional text
// fields submitted as "" are stored as NULL.
func TrimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// CheckPrice rejects amounts the store cannot hold exactly: negative values,
// more than two decimal places, or ten or more integer digits. nil is allowed.
func CheckPrice(field string, price *decimal.Decimal) error {
	if price == nil {
		return nil
	}
	switch {
	case price.IsNegative():
		return apperrors.InvalidInput(field, "must not be negative")
	case !price.Equal(price.Round(PriceScale)):
		return apperrors.InvalidInput(field, fmt.Sprintf("must have at most %d decimal places", PriceScale))
	case price.GreaterThanOrEqual(maxPrice):
		return apperrors.InvalidInput(field, fmt.Sprintf("must be less than %s", maxPrice))
	}
	return nil
}
