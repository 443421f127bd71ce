package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrNotBuildable means filter language could not be mapped to an
	// exact plan (unknown field, unsupported combinator). The caller must
	// route to the retrieval path instead of failing the request.
	ErrNotBuildable = errors.New("structured query not buildable")

	// ErrFilterAmbiguous marks OR/NOT/range combinators the extractor
	// refuses to guess at.
	ErrFilterAmbiguous = errors.New("ambiguous filter expression")

	// ErrRecordStoreUnavailable is the one hard failure of the pipeline:
	// an exact count cannot be silently downgraded to an approximation.
	ErrRecordStoreUnavailable = errors.New("record store unavailable")

	ErrUnknownField = errors.New("unknown schema field")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
