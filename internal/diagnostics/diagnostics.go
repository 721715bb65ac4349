package diagnostics

import (
	"fmt"

	"github.com/funvibe/formula/internal/token"
)

type ErrorCode string

const (
	// Lexer / parser
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // no prefix parse function
	ErrP003 ErrorCode = "P003" // illegal character or literal
	ErrP004 ErrorCode = "P004" // malformed function definition
	ErrP005 ErrorCode = "P005" // trailing input
	ErrP006 ErrorCode = "P006" // expression too complex

	// Analyzer
	ErrA001 ErrorCode = "A001" // unknown identifier
	ErrA002 ErrorCode = "A002" // private access
	ErrA003 ErrorCode = "A003" // type mismatch
	ErrA004 ErrorCode = "A004" // wrong number of arguments

	// Runtime
	ErrR001 ErrorCode = "R001"
)

// DiagnosticError is a positioned error produced by a pipeline stage.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	Message string
	File    string
}

func NewError(code ErrorCode, tok token.Token, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, Token: tok, Message: message}
}

func (e *DiagnosticError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Token.Line, e.Token.Column)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: error[%s]: %s", loc, e.Code, e.Message)
}
