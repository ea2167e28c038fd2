package gateway

// Kind classifies gateway failures for status-code translation by the
// HTTP layer.
type Kind int

const (
	KindNotReady Kind = iota
	KindInvalidInput
	KindNotFound
	KindUpstream
)

// Error carries a failure kind and a user-visible message. Message is
// what ends up in the response body; wrapped errors stay internal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notReady() *Error {
	return &Error{Kind: KindNotReady, Message: "Client is not ready yet."}
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func notFound(err error) *Error {
	return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
}

func upstream(err error) *Error {
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}
