package errorsx

import (
	"errors"
	"fmt"
	"log/slog"
)

// Error carries a reason code alongside the underlying error. The message is
// the underlying error's; the reason travels separately for logs.
type Error struct {
	Reason ReasonCode
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches reason to err. The first reason attached wins, so wrapping an
// already reasoned error returns it unchanged.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	if _, ok := find(err); ok {
		return err
	}
	return &Error{Reason: reason, Err: err}
}

// Errorf formats a new error and tags it with reason.
func Errorf(reason ReasonCode, format string, args ...any) error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

func Reason(err error) ReasonCode {
	if e, ok := find(err); ok {
		return e.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}

// Attr renders err as a log group holding the message and its reason.
func Attr(err error) slog.Attr {
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("reason", string(Reason(err))),
	)
}

func find(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}
