package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindStateConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUpstream, http.StatusInternalServerError},
		{KindBadGateway, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.HTTPStatus(); got != tt.expected {
				t.Errorf("%s.HTTPStatus() = %d, want %d", tt.kind, got, tt.expected)
			}
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	cause := errors.New("dynamodb timeout")
	err := fmt.Errorf("open session: %w", New(KindUpstream, "could not create upload session", cause))

	if KindOf(err) != KindUpstream {
		t.Errorf("expected upstream kind, got %s", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to stay reachable through Unwrap")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("expected plain errors to classify as internal")
	}
}

func TestError_Message(t *testing.T) {
	if got := Validation("sessionId is required.").Error(); got != "sessionId is required." {
		t.Errorf("unexpected message without cause: %s", got)
	}
	err := New(KindNotFound, "Audio file not found in storage.", errors.New("no such key"))
	if got := err.Error(); got != "Audio file not found in storage.: no such key" {
		t.Errorf("unexpected message with cause: %s", got)
	}
}
