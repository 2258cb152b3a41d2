package catalog

import "errors"

var (
	// ErrCatalogNotFound is returned when the catalog file does not exist
	ErrCatalogNotFound = errors.New("purchase order catalog not found")

	// ErrUnsupportedFormat is returned for catalog files with an unknown extension
	ErrUnsupportedFormat = errors.New("unsupported catalog format")

	// ErrDuplicatePO is returned when two purchase orders share a number
	ErrDuplicatePO = errors.New("duplicate purchase order number")

	// ErrMissingPONumber is returned when a purchase order has no number
	ErrMissingPONumber = errors.New("purchase order number is required")
)
