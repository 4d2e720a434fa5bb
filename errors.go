package dynamodel

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrInvalidIdentity is returned when an id is missing or malformed where
	// one is required.
	ErrInvalidIdentity = errors.New("dynamodel: invalid identity")

	// ErrInvalidRelation is returned when attaching a value that is not a
	// persisted entity of the declared type, or when a relation name is not
	// declared on the model.
	ErrInvalidRelation = errors.New("dynamodel: invalid relation")

	// ErrUnsearchableQuery is returned when a relation or search predicate is
	// used on a query that has no search token map to test against.
	ErrUnsearchableQuery = errors.New("dynamodel: unsearchable query")

	// ErrUnknownField is returned when reading or writing an undeclared field.
	ErrUnknownField = errors.New("dynamodel: unknown field")

	// ErrInvalidField is returned when a value does not match the declared field type.
	ErrInvalidField = errors.New("dynamodel: invalid field value")

	// ErrUnknownIndex is returned when a query selects an undeclared index.
	ErrUnknownIndex = errors.New("dynamodel: unknown index")

	// ErrUnknownModel is returned when a type name is not registered.
	ErrUnknownModel = errors.New("dynamodel: unknown model")

	// ErrInvalidSchema is returned by Register for inconsistent schemas.
	ErrInvalidSchema = errors.New("dynamodel: invalid schema")

	// ErrStore is matched by every error surfaced from the store collaborator.
	ErrStore = errors.New("dynamodel: store failure")
)

// StoreError wraps a failed store operation. Code holds the service error
// code when the underlying error is a smithy API error.
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dynamodel: %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("dynamodel: %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrStore so callers can test any store failure with errors.Is.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// NewStoreError wraps err for the named operation. A nil err yields nil, and
// an err that is already a *StoreError is returned as is.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	out := &StoreError{Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
	}
	return out
}
