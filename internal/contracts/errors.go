package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVariant is returned for an unregistered category/version (HTTP 400)
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrAllCategoriesFailed is returned when zero category fetches succeeded (HTTP 503)
	ErrAllCategoriesFailed = errors.New("all categories failed")

	// ErrInvalidRequest is returned for out-of-range request parameters (HTTP 400)
	ErrInvalidRequest = errors.New("invalid request")
)

// UnknownVariantError names the offending category and version
type UnknownVariantError struct {
	Category Category
	Version  string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("%s: %s/%s", ErrUnknownVariant, e.Category, e.Version)
}

// Unwrap matches ErrUnknownVariant
func (e *UnknownVariantError) Unwrap() error {
	return ErrUnknownVariant
}
