package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestSiftError_Error(t *testing.T) {
	err := &SiftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "entry not found",
	}

	expected := "NOT_FOUND: entry not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("text is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "text is required" {
		t.Errorf("Message = %q, want %q", err.Message, "text is required")
	}
}

func TestNewMalformedVector(t *testing.T) {
	err := NewMalformedVector("dimension mismatch", map[string]any{"want": 4, "got": 3})

	if err.Code != ErrMalformedVector {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedVector)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["want"] != 4 {
		t.Errorf("Details[want] = %v, want 4", err.Details["want"])
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/x.csv")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "/tmp/x.csv" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "/tmp/x.csv")
	}
}

func TestNewInsufficientData(t *testing.T) {
	err := NewInsufficientData(3, 10)

	if err.Code != ErrInsufficientData {
		t.Errorf("Code = %q, want %q", err.Code, ErrInsufficientData)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["have"] != 3 || err.Details["want"] != 10 {
		t.Errorf("Details = %v, want have=3 want=10", err.Details)
	}
}

func TestNewCorruptStore(t *testing.T) {
	cause := fmt.Errorf("bad magic")
	err := NewCorruptStore("memory.index", cause)

	if err.Code != ErrCorruptStore {
		t.Errorf("Code = %q, want %q", err.Code, ErrCorruptStore)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Details["path"] != "memory.index" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "memory.index")
	}
}

func TestNewModelUnavailable(t *testing.T) {
	err := NewModelUnavailable("model.msgpack")

	if err.Code != ErrModelUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrModelUnavailable)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("disk full")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "disk full" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "disk full")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrCorruptStore) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-SiftError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-SiftError")
		}
	})

	t.Run("wrapped SiftError", func(t *testing.T) {
		inner := NewModelUnavailable("m")
		wrapped := fmt.Errorf("load: %w", inner)
		if !Is(wrapped, ErrModelUnavailable) {
			t.Error("Is() = false, want true for wrapped SiftError")
		}
		got, ok := As(wrapped)
		if !ok || got != inner {
			t.Errorf("As() = %v, %v; want inner error", got, ok)
		}
	})
}
