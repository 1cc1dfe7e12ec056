package core

import "errors"

// Error kinds. Wrap with fmt.Errorf("...: %w", Err...) and match with errors.Is.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrIllegalMove       = errors.New("illegal move")
	ErrMalformedMove     = errors.New("malformed engine move")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrInvalidFEN        = errors.New("invalid FEN")
	ErrGameNotFound      = errors.New("game not found")
	ErrMissingEmoji      = errors.New("missing emoji")
)

// Error codes
const (
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeIllegalMove       = "ILLEGAL_MOVE"
	CodeMalformedMove     = "MALFORMED_MOVE"
	CodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	CodeInvalidFEN        = "INVALID_FEN"
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeMissingEmoji      = "MISSING_EMOJI"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidCoordinate, CodeInvalidCoordinate},
	{ErrIllegalMove, CodeIllegalMove},
	{ErrMalformedMove, CodeMalformedMove},
	{ErrEngineUnavailable, CodeEngineUnavailable},
	{ErrInvalidFEN, CodeInvalidFEN},
	{ErrGameNotFound, CodeGameNotFound},
	{ErrMissingEmoji, CodeMissingEmoji},
}

// Code maps an error to its stable code, CodeInternalError when unknown
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternalError
}

// ErrorResponse is the JSON error body of the admin API
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
