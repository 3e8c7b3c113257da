// Package apperrors defines the error taxonomy shared by the HTTP boundary and
// the queue workers.
package apperrors

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation     = "VALIDATION_ERROR"
	TextCodeAuth           = "AUTH_ERROR"
	TextCodeTransientFetch = "TRANSIENT_FETCH_ERROR"
	TextCodeAck            = "ACK_ERROR"
	TextCodeInternal       = "INTERNAL_ERROR"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// Validation reports missing or malformed input. Maps to 400.
func Validation(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeValidation, metadata)
}

// Auth reports a credential mismatch. Maps to 401.
func Auth(message string) error {
	return newError(message, goerrors.CategoryAuth, http.StatusUnauthorized, TextCodeAuth, nil)
}

// TransientFetch wraps a marketplace API failure. The message that triggered
// the fetch stays on the queue and is redelivered.
func TransientFetch(source error, location string) error {
	return wrapError(source, goerrors.CategoryExternal, "marketplace order fetch failed",
		http.StatusBadGateway, TextCodeTransientFetch, map[string]any{"location": location})
}

// Ack wraps a failed queue delete. It always carries the receipt handle.
func Ack(source error, receiptHandle string) error {
	return wrapError(source, goerrors.CategoryOperation, "queue message delete failed",
		http.StatusInternalServerError, TextCodeAck, map[string]any{"receipt_handle": receiptHandle})
}

// TextCode returns the text code of a taxonomy error, or "" for foreign errors.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// Is reports whether err carries the given text code.
func Is(err error, textCode string) bool {
	return err != nil && TextCode(err) == textCode
}

// StatusCode maps err to the HTTP status the boundary responds with.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return richErr.Code
		}
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return http.StatusBadRequest
		case goerrors.CategoryAuth:
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}
