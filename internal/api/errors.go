package api

// AuthError reports a failed login, callback exchange, or identity lookup.
// Detail is the backend-provided message when present, otherwise a generic
// transport message; it is shown to the user verbatim.
type AuthError struct {
	Detail string
	Err    error
}

func (e *AuthError) Error() string { return e.Detail }
func (e *AuthError) Unwrap() error { return e.Err }

// ChatError reports a failed chat send or history fetch. The conversation
// stays usable; the controller folds Detail into the transcript.
type ChatError struct {
	Detail string
	Err    error
}

func (e *ChatError) Error() string { return e.Detail }
func (e *ChatError) Unwrap() error { return e.Err }
