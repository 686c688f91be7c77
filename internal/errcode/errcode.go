package errcode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Code is the ordinal of an error kind. Fatal errors exit the process with it.
type Code int

const (
	OK Code = iota
	WrongParams
	LaunchFailed
	WaitFailed
	CreateSocket
	SocketOption
	Bind
	Listen
	Accept
	Receive
	Send
	Close
	MalformedStat
)

var messages = map[Code]string{
	OK:            "",
	WrongParams:   "Command line arguments missing or not numerical!",
	LaunchFailed:  "Opening the pipe went wrong.",
	WaitFailed:    "Closing the pipe went wrong.",
	CreateSocket:  "Creating socket file descriptor failed.",
	SocketOption:  "Changing the option state of a socket failed.",
	Bind:          "Binding port to a socket failed.",
	Listen:        "Listening for connections on a socket failed.",
	Accept:        "Accepting a connection on a socket failed.",
	Receive:       "Receiving a message from a socket failed.",
	Send:          "Sending a message onto a socket failed.",
	Close:         "Closing the socket file descriptor failed",
	MalformedStat: "CPU statistics could not be parsed.",
}

// Message returns the fixed one-line description of the code.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return fmt.Sprintf("unknown error (%d)", int(c))
}

func (c Code) String() string { return c.Message() }

// Error attaches a Code to an underlying cause.
type Error struct {
	Code Code
	Err  error
}

// New wraps err with code. A nil err still yields a non-nil *Error.
func New(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.Message()
	}
	return strings.TrimSuffix(e.Code.Message(), ".") + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf reports the code carried by err, or fallback if none is attached.
func CodeOf(err error, fallback Code) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}

var exit = os.Exit

// Exit writes a one-line description of err to w and terminates with its
// code as status. Errors without a code exit as WrongParams.
func Exit(w io.Writer, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = New(WrongParams, err)
	}
	fmt.Fprintln(w, e.Error())
	exit(int(e.Code))
}
