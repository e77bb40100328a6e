package srt

import "fmt"

// Error is an SRT error with its native numeric code. It is the error
// category for every failure originating in the transport, including the
// error edge a socket reports through the epoll.
type Error struct {
	Code int
	Text string
}

func (e *Error) Error() string { return fmt.Sprintf("srt: %s (%d)", e.Text, e.Code) }

// Is matches any *Error with the same code, so callers can classify with
// errors.Is(err, srt.ErrConnLost).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Native SRT error codes (SRT_ERRNO). Only the codes the reactor and its
// callers are expected to observe are named; NewError covers the rest.
const (
	CodeUnknown   = -1
	CodeConnSetup = 1000
	CodeConnRej   = 1002
	CodeConnFail  = 2000
	CodeConnLost  = 2001
	CodeNoConn    = 2002
	CodeResource  = 3000
	CodeInvalSock = 5004
	CodeAsyncRcv  = 6002
	CodeTimeout   = 6003
	CodePeer      = 7000
)

var codeText = map[int]string{
	CodeUnknown:   "unknown error",
	CodeConnSetup: "connection setup failure",
	CodeConnRej:   "connection rejected",
	CodeConnFail:  "connection failure",
	CodeConnLost:  "connection lost",
	CodeNoConn:    "no connection",
	CodeResource:  "resource failure",
	CodeInvalSock: "invalid socket",
	CodeAsyncRcv:  "no data available",
	CodeTimeout:   "operation timed out",
	CodePeer:      "peer error",
}

// Sentinels for errors.Is classification.
var (
	ErrConnLost = &Error{Code: CodeConnLost, Text: codeText[CodeConnLost]}
	ErrNoConn   = &Error{Code: CodeNoConn, Text: codeText[CodeNoConn]}
	ErrConnRej  = &Error{Code: CodeConnRej, Text: codeText[CodeConnRej]}
	ErrTimeout  = &Error{Code: CodeTimeout, Text: codeText[CodeTimeout]}
	ErrPeer     = &Error{Code: CodePeer, Text: codeText[CodePeer]}
)

// NewError builds an *Error from a native code, with fallback text for
// codes outside the named set.
func NewError(code int) *Error {
	if t, ok := codeText[code]; ok {
		return &Error{Code: code, Text: t}
	}
	return &Error{Code: code, Text: fmt.Sprintf("error %d", code)}
}
