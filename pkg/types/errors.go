package types

import (
	"errors"
	"fmt"
)

// ErrValidation marks malformed caller input (missing required fields,
// negative windows). Handlers map it to HTTP 400; everything else that comes
// out of the store is a storage failure.
var ErrValidation = errors.New("validation error")

func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
