package client

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/urls"
)

// ErrorType represents the category of a transport failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates nothing is listening at the server URL
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates the server hostname did not resolve
	ErrTypeDNS
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeUnknown indicates an unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is a failure to talk to the setup server at all.
type Error struct {
	Type      ErrorType
	Message   string
	Err       error
	Host      string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the server. The message is the
// server's {"message": ...} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status to an account error so callers can use the
// account.Is* helpers on client results.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return account.NewAuthError(e.Message)
	case e.StatusCode == http.StatusNotFound:
		return account.NewNotFoundError(e.Message)
	case e.StatusCode == http.StatusBadRequest && e.Message == account.MsgDeviceNotFound:
		return account.NewNotFoundError(e.Message)
	case e.StatusCode == http.StatusBadRequest &&
		(e.Message == account.MsgUsernameTaken || e.Message == account.MsgEmailTaken):
		return account.NewConflictError("", e.Message)
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return account.NewValidationError("", e.Message)
	default:
		return account.NewInternalError(e.Message, nil)
	}
}

// ClassifyNetworkError analyzes a transport error and returns a more
// specific error type
func ClassifyNetworkError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &Error{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, Host: host, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
			Host:    host,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{Type: ErrTypeConnectionRefused, Message: "Server refused connection", Err: err, Host: host, Retryable: true}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &Error{Type: ErrTypeNetwork, Message: "Host unreachable", Err: err, Host: host, Retryable: true}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{Type: ErrTypeNetwork, Message: "Network unreachable", Err: err, Host: host, Retryable: true}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &Error{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, Host: host, Retryable: true}
}

func newParseError(message string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Err: err}
}

// IsNetworkError reports whether err is a transport failure, as opposed to
// an answer from the server.
func IsNetworkError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// IsRetryable reports whether a request failing with err may be repeated.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ShortMessage returns a concise, user-facing description of err.
func ShortMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 {
			return fmt.Sprintf("Server error (HTTP %d)", apiErr.StatusCode)
		}
		return apiErr.Message
	}

	var e *Error
	if !errors.As(err, &e) {
		return account.UserMessage(err)
	}
	switch e.Type {
	case ErrTypeTimeout:
		return "Setup server not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Setup server refused connection - is it running?"
	case ErrTypeDNS:
		return "Cannot resolve setup server hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeParse:
		return "Unexpected response from setup server"
	default:
		return e.Message
	}
}

// Hint returns troubleshooting advice for transport failures, or "" when
// err needs none.
func Hint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	switch e.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The setup server did not respond in time.",
			"Troubleshooting:",
			"  • Check that clm-setup-server is running",
			"  • Try increasing --timeout",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"Nothing is listening at " + e.Host + ".",
			"Troubleshooting:",
			"  • Start the server: clm-setup-server serve",
			"  • Run 'clm-setup discover' to find servers on the network",
			"  • Use --offline to run the wizard without a server",
			"  • Server setup guide: " + urls.ServerSetup,
		}, "\n")
	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the server hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of the hostname",
			"  • Run 'clm-setup discover' to find servers on the network",
		}, "\n")
	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify you are on the same network as the setup server",
		}, "\n")
	}
	return ""
}
