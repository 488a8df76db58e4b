package session

import (
	"errors"
	"fmt"

	"roguecloud.io/internal/protocol"
)

var (
	ErrVersionMismatch    = errors.New("protocol version mismatch")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoundNotStarted    = errors.New("round not started")
	ErrRoundOver          = errors.New("round over")
	ErrBadRequest         = errors.New("bad handshake request")
	ErrClosed             = errors.New("session closed")
)

// RejectedError is a handshake the server refused.
type RejectedError struct {
	Result  string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("handshake rejected: %s", e.Result)
	}
	return fmt.Sprintf("handshake rejected: %s: %s", e.Result, e.Message)
}

func (e *RejectedError) Unwrap() error {
	switch e.Result {
	case protocol.ResultVersionMismatch:
		return ErrVersionMismatch
	case protocol.ResultInvalidCredentials:
		return ErrInvalidCredentials
	case protocol.ResultRoundNotStarted:
		return ErrRoundNotStarted
	case protocol.ResultRoundOver:
		return ErrRoundOver
	}
	return ErrBadRequest
}
