package errcode

const (
	ErrInvalid       = 40000
	ErrNotFound      = 40400
	ErrTooMany       = 42900
	ErrInternal      = 50000
	ErrAIUnavailable = 50010
)
