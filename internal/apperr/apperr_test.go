package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("place order: %w", Invalid("items", "items are required"))
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind, got %v", KindOf(err))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("plain errors should be internal")
	}
}

func TestFieldsErr(t *testing.T) {
	f := Fields{}
	if f.Err() != nil {
		t.Fatal("empty fields should not produce an error")
	}

	f.Add("email", "email is required")
	f.Add("email", "ignored second message")
	f.Add("name", "name is required")

	var appErr *Error
	if !errors.As(f.Err(), &appErr) {
		t.Fatal("expected *Error")
	}
	if appErr.Fields["email"] != "email is required" {
		t.Errorf("first message should win, got %q", appErr.Fields["email"])
	}
	if appErr.Message != "email is required; name is required" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}
