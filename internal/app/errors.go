package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailExists       = errors.New("an account with this email already exists")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrAccountNotFound   = errors.New("account no longer exists")

	ErrDocumentNotFound = errors.New("document not found")
	ErrUnsupportedFile  = errors.New("only PDF files are allowed")
	ErrFileTooLarge     = errors.New("file exceeds the upload size limit")
	ErrConfirmRequired  = errors.New("deletion must be confirmed")
	ErrIngestEnqueue    = errors.New("ingestion enqueue failed")

	ErrChatNotFound   = errors.New("chat not found")
	ErrMessageEmpty   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content is too long")
	ErrMessageEnqueue = errors.New("message enqueue failed")

	ErrFlashCardNotFound    = errors.New("flashcard not found")
	ErrFlashCardSetNotFound = errors.New("flashcard set not found")
	ErrInvalidCards         = errors.New("some flashcards are missing or not owned by the user")
)
