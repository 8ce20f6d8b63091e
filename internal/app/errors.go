package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	ErrChatNotFound = errors.New("chat not found")
	ErrMessageEmpty = errors.New("message content is empty")

	ErrDocumentNotFound = errors.New("document not found")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrEmptyDocument    = errors.New("document has no text")

	ErrUnknownQuestion = errors.New("unknown questionnaire question")
)
