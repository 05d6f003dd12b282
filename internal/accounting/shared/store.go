package shared

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// StoreError classifies an error returned from a store call or transaction.
// Domain errors pass through unchanged, exhausted conflicts and outages become
// TransientError, anything else is wrapped with op.
func StoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInactiveAccount), errors.Is(err, ErrTransient),
		errors.Is(err, ErrPartialCompletion), errors.Is(err, ErrInvalidStatus):
		return err
	case errors.Is(err, docstore.ErrConflict), errors.Is(err, docstore.ErrUnavailable):
		return &TransientError{Op: op, Err: err}
	case errors.Is(err, docstore.ErrInvalidPath):
		return Validation("scope", err.Error())
	}
	return fmt.Errorf("accounting: %s: %w", op, err)
}
