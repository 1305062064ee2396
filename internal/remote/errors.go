package remote

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies a failed call against the accounts service.
//
// Application codes correspond to rejections reported by the service itself.
// Failure and NotAvailable are transport-level classes: the request never
// reached a deciding service (connection down, timeout, malformed reply) and
// may be retried as-is.
type Code int

const (
	// Application-level rejections.
	Busy Code = iota
	HomeCreateFailed
	HomeRemoveFailed
	GroupCreateFailed
	UserAddFailed
	UserModifyFailed
	UserRemoveFailed
	GetUidFailed
	UserNotFound
	AddToGroupFailed
	RemoveFromGroupFailed
	OtherError

	// Transport-level classes.
	Failure
	NotAvailable
)

var codeNames = map[Code]string{
	Busy:                  "Busy",
	HomeCreateFailed:      "HomeCreateFailed",
	HomeRemoveFailed:      "HomeRemoveFailed",
	GroupCreateFailed:     "GroupCreateFailed",
	UserAddFailed:         "UserAddFailed",
	UserModifyFailed:      "UserModifyFailed",
	UserRemoveFailed:      "UserRemoveFailed",
	GetUidFailed:          "GetUidFailed",
	UserNotFound:          "UserNotFound",
	AddToGroupFailed:      "AddToGroupFailed",
	RemoveFromGroupFailed: "RemoveFromGroupFailed",
	OtherError:            "OtherError",
	Failure:               "Failure",
	NotAvailable:          "NotAvailable",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Transport reports whether c is a transport-level class rather than an
// application rejection.
func (c Code) Transport() bool {
	return c == Failure || c == NotAvailable
}

// Error identifiers the service uses on the wire. Unrecognized identifiers
// classify as OtherError.
const (
	errBusy                  = "accounts.error.Busy"
	errHomeCreateFailed      = "accounts.error.HomeCreateFailed"
	errHomeRemoveFailed      = "accounts.error.HomeRemoveFailed"
	errGroupCreateFailed     = "accounts.error.GroupCreateFailed"
	errUserAddFailed         = "accounts.error.UserAddFailed"
	errUserModifyFailed      = "accounts.error.UserModifyFailed"
	errUserRemoveFailed      = "accounts.error.UserRemoveFailed"
	errGetUidFailed          = "accounts.error.GetUidFailed"
	errUserNotFound          = "accounts.error.UserNotFound"
	errAddToGroupFailed      = "accounts.error.AddToGroupFailed"
	errRemoveFromGroupFailed = "accounts.error.RemoveFromGroupFailed"
)

var codeByIdentifier = map[string]Code{
	errBusy:                  Busy,
	errHomeCreateFailed:      HomeCreateFailed,
	errHomeRemoveFailed:      HomeRemoveFailed,
	errGroupCreateFailed:     GroupCreateFailed,
	errUserAddFailed:         UserAddFailed,
	errUserModifyFailed:      UserModifyFailed,
	errUserRemoveFailed:      UserRemoveFailed,
	errGetUidFailed:          GetUidFailed,
	errUserNotFound:          UserNotFound,
	errAddToGroupFailed:      AddToGroupFailed,
	errRemoveFromGroupFailed: RemoveFromGroupFailed,
}

var identifierByCode = func() map[Code]string {
	m := make(map[Code]string, len(codeByIdentifier))
	for id, c := range codeByIdentifier {
		m[c] = id
	}
	return m
}()

// Error is a classified failure of a call against the accounts service.
type Error struct {
	Code       Code
	Identifier string // raw remote identifier, empty for transport failures
	Err        error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Identifier != "":
		return fmt.Sprintf("accounts service: %s (%s)", e.Code, e.Identifier)
	case e.Err != nil:
		return fmt.Sprintf("accounts service: %s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("accounts service: %s", e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the classification from err. Non-remote errors classify as
// Failure; a nil error has no classification and returns OtherError.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	if err == nil {
		return OtherError
	}
	return Failure
}

// notAvailable is the immediate failure for calls issued while the gateway
// is disconnected.
func notAvailable() error {
	return &Error{Code: NotAvailable, Err: errors.New("accounts service not available")}
}

// mapError converts a gRPC call error into a classified *Error.
//
// The service reports application rejections as FailedPrecondition with the
// error identifier in the status message. Everything else is a transport
// condition: unreachable/timeout becomes NotAvailable, the rest Failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &Error{Code: Failure, Err: err}
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return &Error{Code: NotAvailable, Err: err}
	case codes.FailedPrecondition:
		if c, ok := codeByIdentifier[st.Message()]; ok {
			return &Error{Code: c, Identifier: st.Message(), Err: err}
		}
		return &Error{Code: OtherError, Identifier: st.Message(), Err: err}
	default:
		return &Error{Code: Failure, Err: err}
	}
}

// RejectionError builds the wire-level status error for an application
// rejection. Used by implementations of ManagerServer.
func RejectionError(c Code) error {
	id, ok := identifierByCode[c]
	if !ok {
		id = "accounts.error.Other"
	}
	return status.Error(codes.FailedPrecondition, id)
}
