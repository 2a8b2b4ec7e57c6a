// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import "rina.dev/core/internal/errors"

// Exit codes surfaced to user-space. These are carried as the "code"
// attribute on an *errors.Error so callers can branch with
// errors.GetAttributes(err)["code"] while errors.GetKind(err) still gives
// the coarser category used by upward error propagation.
const (
	CodeInvalidArgument = "InvalidArgument"
	CodeOutOfMemory     = "OutOfMemory"
	CodeUnknownFlow     = "UnknownFlow"
	CodeFlowClosed      = "FlowClosed"
	CodeWouldBlock      = "WouldBlock"
	CodeInterrupted     = "Interrupted"
	CodeIoError         = "IoError"
	CodeBusy            = "Busy"
)

func withCode(kind errors.Kind, code, msg string) error {
	return errors.Attr(errors.New(kind, msg), "code", code)
}

func errUnknownFlow() error {
	return withCode(errors.KindPrecondition, CodeUnknownFlow, "unknown flow")
}

func errFlowClosed() error {
	return withCode(errors.KindLifecycleClosed, CodeFlowClosed, "flow closed")
}

func errWouldBlock() error {
	return withCode(errors.KindTransient, CodeWouldBlock, "would block")
}

func errInterrupted() error {
	return withCode(errors.KindInterrupted, CodeInterrupted, "interrupted")
}

func errIoError(underlying error) error {
	e := errors.Wrap(underlying, errors.KindProvider, "io error")
	return errors.Attr(e, "code", CodeIoError)
}

func errInvalidArgument(msg string) error {
	return withCode(errors.KindPrecondition, CodeInvalidArgument, msg)
}

func errBusy(msg string) error {
	return withCode(errors.KindPrecondition, CodeBusy, msg)
}

// Code returns the exit code attribute attached to err, or "" if none.
func Code(err error) string {
	if v, ok := errors.GetAttributes(err)["code"].(string); ok {
		return v
	}
	return ""
}
