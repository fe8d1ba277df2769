package leads

import "errors"

var (
	// ErrMissingOrgID is returned when the org context is absent
	ErrMissingOrgID = errors.New("org id is required")

	// ErrInvalidName is returned when the name is invalid
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrInvalidProduct is returned for an unknown product type
	ErrInvalidProduct = errors.New("unknown product type")

	// ErrInvalidStatus is returned for an unknown pipeline status
	ErrInvalidStatus = errors.New("unknown lead status")

	// ErrInvalidChannel is returned for an unknown interaction channel
	ErrInvalidChannel = errors.New("unknown interaction channel")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
