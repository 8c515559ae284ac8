package cart

import "errors"

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrMissingPrice    = errors.New("missing price")
	ErrProductNotFound = errors.New("product not found")

	ErrUnsupportedSchema = errors.New("unsupported cart schema version")
	ErrCorruptSnapshot   = errors.New("corrupt cart snapshot")
)
