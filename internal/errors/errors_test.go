package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMissingDocIDError(t *testing.T) {
	err := NewMissingDocIDError(`{"title":"x"}`)
	if !errors.Is(err, ErrMissingDocID) {
		t.Error("MissingDocIDError should match ErrMissingDocID")
	}
	if errors.Is(err, ErrInvalidDocID) {
		t.Error("MissingDocIDError should not match ErrInvalidDocID")
	}
	if got := err.Error(); got != `document {"title":"x"} does not contain a document id` {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestInvalidDocIDError(t *testing.T) {
	err := NewInvalidDocIDError("movie_id", "abc")
	if !errors.Is(err, ErrInvalidDocID) {
		t.Error("InvalidDocIDError should match ErrInvalidDocID")
	}
	if got := err.Error(); got != `field "movie_id": document id "abc" is not an unsigned integer` {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestUnknownBackendError(t *testing.T) {
	err := NewUnknownBackendError("postgres")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Error("UnknownBackendError should match ErrUnknownBackend")
	}
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("batch rejected: %w", NewInvalidDocIDError("id", "1.5"))
	if !errors.Is(err, ErrInvalidDocID) {
		t.Error("wrapped InvalidDocIDError should still match ErrInvalidDocID")
	}
}
