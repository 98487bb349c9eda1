package apierror

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "api error",
			err:      API(500, "/developer/v2/cycle", `{"error":"boom"}`),
			expected: `whoop api error (500) for /developer/v2/cycle: {"error":"boom"}`,
		},
		{
			name:     "token exchange with status",
			err:      TokenExchange(400, "https://example.com/token", `{"error":"invalid_grant"}`, nil),
			expected: `token request failed (400): {"error":"invalid_grant"}`,
		},
		{
			name:     "token exchange transport failure",
			err:      TokenExchange(0, "https://example.com/token", "send request", errors.New("connection refused")),
			expected: "token request failed: send request: connection refused",
		},
		{
			name:     "shape error",
			err:      Shape("/developer/v2/recovery", "records is not an array"),
			expected: "unexpected whoop response shape for /developer/v2/recovery: records is not an array",
		},
		{
			name:     "configuration error",
			err:      Configuration("Missing OAuth configuration. Run `whoop login` first."),
			expected: "Missing OAuth configuration. Run `whoop login` first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch overview: %w", Shape("/x", "bad"))

	if got := KindOf(wrapped); got != KindShape {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindShape)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("get: %w", API(404, "/developer/v2/cycle/1/sleep", "not found"))

	if !IsStatus(err, 404) {
		t.Error("IsStatus(err, 404) = false, want true")
	}
	if IsStatus(err, 401) {
		t.Error("IsStatus(err, 401) = true, want false")
	}
	if IsStatus(Shape("/x", "bad"), 404) {
		t.Error("shape error must not match a status")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := TokenExchange(0, "https://example.com/token", "send request", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
