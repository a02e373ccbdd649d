package salus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrNotImplemented is returned by operations the vendor portal exposes in its
// UI but whose request format is unknown.
var ErrNotImplemented = errors.New("not implemented")

// AuthReason says why a login sequence failed
type AuthReason int

const (
	// ReasonCredentialsRejected: the login did not produce a session able to open the control page
	ReasonCredentialsRejected AuthReason = iota
	// ReasonTokenNotFound: the control page loaded but carried no token marker
	ReasonTokenNotFound
)

func (r AuthReason) String() string {
	switch r {
	case ReasonCredentialsRejected:
		return "credentials_rejected"
	case ReasonTokenNotFound:
		return "token_not_found"
	default:
		return fmt.Sprintf("AuthReason(%d)", int(r))
	}
}

// AuthError is returned when the login sequence cannot produce a token.
// Wrong credentials and a changed portal layout are indistinguishable here.
type AuthError struct {
	Reason  AuthReason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s (caused by: %v)", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Reason, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DecodeReason says why a payload field was rejected
type DecodeReason int

const (
	ReasonMissingOrInvalid DecodeReason = iota
	ReasonOutOfRange
	ReasonMalformed
)

func (r DecodeReason) String() string {
	switch r {
	case ReasonMissingOrInvalid:
		return "missing_or_invalid"
	case ReasonOutOfRange:
		return "out_of_range"
	case ReasonMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("DecodeReason(%d)", int(r))
	}
}

// DecodeError is returned by Decode. Field is empty when the payload as a
// whole could not be parsed.
type DecodeError struct {
	Field  string
	Reason DecodeReason
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Reason.String()
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorKind is the category of a ClientError
type ErrorKind int

const (
	// KindOutOfRange indicates a command argument was rejected before any I/O
	KindOutOfRange ErrorKind = iota
	// KindTransport indicates a network failure, timeout or non-2xx response
	KindTransport
	// KindUnreachable indicates FetchState failed again after refreshing the session
	KindUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindOutOfRange:
		return "out_of_range"
	case KindTransport:
		return "transport"
	case KindUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// NetworkSubtype refines KindTransport errors
type NetworkSubtype int

const (
	NetworkGeneral NetworkSubtype = iota
	NetworkTimeout
	NetworkConnectionRefused
	NetworkDNS
	NetworkHTTPStatus
)

// ClientError is returned by the Client operations.
type ClientError struct {
	Kind           ErrorKind
	Op             string // operation name, e.g. "fetch_state"
	Message        string
	StatusCode     int // HTTP status (if applicable)
	NetworkSubtype NetworkSubtype
	Err            error
}

func (e *ClientError) Error() string {
	prefix := e.Kind.String()
	if e.Op != "" {
		prefix = e.Op + " " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError wraps a transport failure into a ClientError with a subtype
func ClassifyNetworkError(message string, err error) *ClientError {
	if err == nil {
		return nil
	}

	ce := &ClientError{
		Kind:           KindTransport,
		Message:        message,
		Err:            err,
		NetworkSubtype: NetworkGeneral,
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		ce.NetworkSubtype = NetworkTimeout
	case errors.As(err, &dnsErr):
		ce.NetworkSubtype = NetworkDNS
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		ce.NetworkSubtype = NetworkConnectionRefused
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			ce.NetworkSubtype = NetworkTimeout
		}
	}

	return ce
}

func newStatusError(method, path string, status int) *ClientError {
	return &ClientError{
		Kind:           KindTransport,
		Message:        fmt.Sprintf("%s %s returned HTTP %d", method, path, status),
		StatusCode:     status,
		NetworkSubtype: NetworkHTTPStatus,
	}
}

// IsAuthError reports whether err carries an AuthError
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsDecodeError reports whether err carries a DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsClientError reports whether err carries a ClientError of the given kind
func IsClientError(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// KindOf returns the kind of the outermost ClientError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsTimeout reports whether err was caused by a request timeout
func IsTimeout(err error) bool {
	var ce *ClientError
	for errors.As(err, &ce) {
		if ce.NetworkSubtype == NetworkTimeout {
			return true
		}
		err = ce.Err
	}
	return false
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotImplemented) {
		return "Not supported by this client yet"
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		switch ae.Reason {
		case ReasonCredentialsRejected:
			return "Login failed - check email and password"
		case ReasonTokenNotFound:
			return "Logged in but no session token found - check the device id"
		}
	}

	var ce *ClientError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case KindOutOfRange:
			return ce.Message
		case KindUnreachable:
			if IsTimeout(err) {
				return "Thermostat unreachable (vendor portal not responding)"
			}
			return "Thermostat unreachable"
		case KindTransport:
			switch ce.NetworkSubtype {
			case NetworkTimeout:
				return "Vendor portal not responding (timeout)"
			case NetworkDNS:
				return "Cannot resolve vendor portal hostname"
			case NetworkConnectionRefused:
				return "Vendor portal refused connection"
			case NetworkHTTPStatus:
				return fmt.Sprintf("Vendor portal error (HTTP %d)", ce.StatusCode)
			default:
				return "Network error - check connection"
			}
		}
	}

	if IsDecodeError(err) {
		return "Unexpected response from vendor portal"
	}

	return err.Error()
}
