package clientquery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Protocol error codes callers have to special-case.
const (
	CodeOK               = 0
	CodeNotConnected     = 1794 // not connected to a voice server
	CodeAlreadyConnected = 1796 // connect issued while already connected
)

// QueryError is the "error id=... msg=..." trailer of a failed command.
type QueryError struct {
	ID      int
	Msg     string
	Command string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("clientquery: %s: error id=%d msg=%s", e.Command, e.ID, e.Msg)
}

// ErrTimeout is returned by WaitEvent when no notification arrived within
// the requested window.
var ErrTimeout = errors.New("clientquery: event wait timed out")

// connection-class substrings, a fallback for errors the typed checks
// below cannot classify.
var connSubstrings = []string{
	"broken pipe",
	"connection reset",
	"use of closed network connection",
	"not connected",
	"socket",
	"eof",
}

var refusedSubstrings = []string{
	"refused",
	"no such host",
	"10061",
	"111",
}

// IsConnectionError reports whether err means the session transport is dead
// and the session must be dropped and rebuilt. A *QueryError with the
// not-connected code counts too: the client lost its voice server.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return false
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.ID == CodeNotConnected
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, s := range connSubstrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// IsRefusedError reports whether err looks like "nothing is listening on the
// ClientQuery port", the class that justifies restarting the client
// process rather than just redialing.
func IsRefusedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, s := range refusedSubstrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
