package client

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err:  &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "Internal Server Error"},
			want: "server error (status 500): Internal Server Error",
		},
		{
			name: "with wrapped error",
			err:  &APIError{ErrorClass: ErrorClassNetwork, Message: "transport error", Err: io.ErrUnexpectedEOF},
			want: "network error (status 0): transport error: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	err := &APIError{
		ErrorClass: ErrorClassDecode,
		Message:    "decode response body",
		Err:        fmt.Errorf("%w: unexpected end of JSON input", ErrMalformedResponse),
	}

	if !errors.Is(err, ErrMalformedResponse) {
		t.Error("errors.Is should find ErrMalformedResponse")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		class     ErrorClass
		retryable bool
	}{
		{"client", &APIError{StatusCode: 404, ErrorClass: ErrorClassClient}, ErrorClassClient, false},
		{"server", &APIError{StatusCode: 500, ErrorClass: ErrorClassServer}, ErrorClassServer, true},
		{"network", &APIError{ErrorClass: ErrorClassNetwork}, ErrorClassNetwork, true},
		{"decode", &APIError{ErrorClass: ErrorClassDecode}, ErrorClassDecode, false},
		{"wrapped server", fmt.Errorf("page 3: %w", &APIError{ErrorClass: ErrorClassServer}), ErrorClassServer, true},
		{"plain error", errors.New("boom"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, retryable := Classify(tt.err)
			if class != tt.class || retryable != tt.retryable {
				t.Errorf("Classify() = (%q, %v), want (%q, %v)", class, retryable, tt.class, tt.retryable)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{304, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}
