package evaluator

import (
	"fmt"

	"github.com/funvibe/formula/internal/token"
)

func newError(format string, a ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, a...)}
}

func newErrorWithPos(tok token.Token, format string, a ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, a...), Line: tok.Line, Column: tok.Column}
}

// NewError builds an evaluation error for builtins registered from
// outside the package.
func NewError(format string, a ...interface{}) *Error {
	return newError(format, a...)
}

// locate stamps a position on an error that has none yet.
func locate(obj Object, tok token.Token) Object {
	if err, ok := obj.(*Error); ok && err.Line == 0 && tok.Line > 0 {
		err.Line, err.Column = tok.Line, tok.Column
	}
	return obj
}
