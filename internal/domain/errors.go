package domain

import "errors"

var (
	// ErrInvalidURL is returned when a URL is malformed (missing scheme etc.)
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrFetchFailed is returned when a page could not be fetched after all retries
	ErrFetchFailed = errors.New("failed to fetch URL")

	// ErrEmptyDocument is returned when HTML input is empty or unparseable
	ErrEmptyDocument = errors.New("failed to extract content from page")

	// ErrThinContent is a soft error: text was extracted but is suspiciously short
	ErrThinContent = errors.New("extracted text below minimum length")

	// ErrProductNotFound is returned when the oracle finds no matching product
	ErrProductNotFound = errors.New("product not found on this page")

	// ErrOracleFailure is returned when the product matching API call fails
	ErrOracleFailure = errors.New("product matching request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrSecretNotFound is returned when a secret is missing from the backing store
	ErrSecretNotFound = errors.New("secret not found")
)

// ErrorCategory classifies a failed verification for user messaging.
type ErrorCategory string

const (
	CategoryNone            ErrorCategory = "none"
	CategoryFetchError      ErrorCategory = "fetch_error"
	CategoryExtractError    ErrorCategory = "extract_error"
	CategoryProductNotFound ErrorCategory = "product_not_found"
	CategoryValidationError ErrorCategory = "validation_error"
	CategoryInternalError   ErrorCategory = "internal_error"
)
