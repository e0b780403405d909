package apperror

import "errors"

var (
	ErrInvalidMove        = errors.New("invalid move")
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameAlreadyExists  = errors.New("game already exists")
	ErrUnknownSession     = errors.New("unknown session")
	ErrEmptyCandidateSet  = errors.New("no candidate moves on a full board")
	ErrCandidateMismatch  = errors.New("candidate moves do not match valid moves")
	ErrPersistence        = errors.New("credit table persistence failed")
	ErrInvalidBoard       = errors.New("invalid board state")
	ErrInvalidFalloff     = errors.New("falloff must be positive")
	ErrScriptExhausted    = errors.New("scripted moves exhausted")
	ErrUnsupportedStorage = errors.New("unsupported storage kind")
)
