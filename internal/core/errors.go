package core

import "errors"

// Error codes carried on error events and wire error frames.
const (
	ErrCodeUnauthenticated          = "unauthenticated"
	ErrCodeRoomNotFound             = "room_not_found"
	ErrCodeRoomFull                 = "room_full"
	ErrCodeRoomFinished             = "room_finished"
	ErrCodeNotDriver                = "not_driver"
	ErrCodeInsufficientParticipants = "insufficient_participants"
	ErrCodeDuplicateIdentity        = "duplicate_identity"
	ErrCodeNotInRoom                = "not_in_room"
	ErrCodeBadRequest               = "bad_request"
	ErrCodeInvalidMessage           = "invalid_message"
)

var (
	ErrRoomNotFound             = errors.New("room not found")
	ErrRoomFull                 = errors.New("room full")
	ErrRoomFinished             = errors.New("room finished")
	ErrNotDriver                = errors.New("not driver")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrDuplicateIdentity        = errors.New("duplicate identity")
	ErrNotInRoom                = errors.New("not in room")
	ErrSubmissionNotAllowed     = errors.New("room does not grade submissions")
	ErrRoleSwitchNotAllowed     = errors.New("room has no driver role")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// errorCode maps a domain sentinel to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return ErrCodeRoomFull
	case errors.Is(err, ErrRoomFinished):
		return ErrCodeRoomFinished
	case errors.Is(err, ErrNotDriver):
		return ErrCodeNotDriver
	case errors.Is(err, ErrInsufficientParticipants):
		return ErrCodeInsufficientParticipants
	case errors.Is(err, ErrDuplicateIdentity):
		return ErrCodeDuplicateIdentity
	case errors.Is(err, ErrNotInRoom):
		return ErrCodeNotInRoom
	case errors.Is(err, ErrSubmissionNotAllowed), errors.Is(err, ErrRoleSwitchNotAllowed):
		// Kind mismatches are client mistakes, recoverable on the same
		// connection.
		return ErrCodeBadRequest
	default:
		return ErrCodeBadRequest
	}
}
