package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/clmpro/clmsetup/internal/account"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"timeout", os.ErrDeadlineExceeded, ErrTypeTimeout, true},
		{"dns", &net.DNSError{Name: "clm.local", Err: "no such host"}, ErrTypeDNS, false},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, ErrTypeConnectionRefused, true},
		{"host unreachable", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, ErrTypeNetwork, true},
		{"wrapped in url error", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Name: "x"}}, ErrTypeDNS, false},
		{"generic", errors.New("boom"), ErrTypeNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "localhost:5000")
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("nil error should classify as nil")
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	tests := []struct {
		status int
		msg    string
		is     func(error) bool
	}{
		{401, account.MsgInvalidCredentials, account.IsAuthError},
		{400, account.MsgUsernameTaken, account.IsConflictError},
		{400, account.MsgEmailTaken, account.IsConflictError},
		{400, account.MsgDeviceNotFound, account.IsNotFoundError},
		{404, "Not Found", account.IsNotFoundError},
		{400, "Invalid JSON body", account.IsValidationError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s", tt.status, tt.msg), func(t *testing.T) {
			err := fmt.Errorf("request: %w", &APIError{StatusCode: tt.status, Message: tt.msg})
			if !tt.is(err) {
				t.Errorf("classification failed for %v", err)
			}
			if got := account.UserMessage(err); got != tt.msg {
				t.Errorf("UserMessage = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &APIError{StatusCode: 503}, true},
		{"client error", &APIError{StatusCode: 400}, false},
		{"refused", &Error{Type: ErrTypeConnectionRefused, Retryable: true}, true},
		{"parse", newParseError("bad", nil), false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&APIError{StatusCode: 502, Message: "Bad Gateway"}, "Server error (HTTP 502)"},
		{&APIError{StatusCode: 401, Message: "Unauthorized"}, "Unauthorized"},
		{&Error{Type: ErrTypeTimeout}, "Setup server not responding (timeout)"},
		{&Error{Type: ErrTypeConnectionRefused}, "Setup server refused connection - is it running?"},
		{account.NewValidationError("email", "Email is required"), "Email is required"},
	}
	for _, tt := range tests {
		if got := ShortMessage(tt.err); got != tt.want {
			t.Errorf("ShortMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
