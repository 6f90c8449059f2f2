package cipher

import (
	"fmt"

	"github.com/yamihome/yami/errs"
)

// Error codes
const (
	ErrCodePlayerJSNotFound  = "PLAYER_JS_NOT_FOUND"
	ErrCodePlayerJSDownload  = "PLAYER_JS_DOWNLOAD_FAILED"
	ErrCodeSignatureInvalid  = "SIGNATURE_INVALID"
	ErrCodeSignatureDecipher = "SIGNATURE_DECIPHER_FAILED"
	ErrCodeJSExecutionFailed = "JS_EXECUTION_FAILED"
)

// Error is a cipher failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the cause and errs.ErrCipherFailed.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{errs.ErrCipherFailed, e.Err}
	}
	return []error{errs.ErrCipherFailed}
}

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// HasCode reports whether err is a cipher *Error with the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
