// Package asserts implements fatal assertion failures and the nested
// recovery scopes that turn them into ordinary errors.
//
// A failed assertion outside any recovery scope is logged and panics,
// which aborts the process unless some caller recovers it. Inside a scope
// opened by Recover, the failure is returned as an error instead.
package asserts

import (
	"fmt"
	"log"
)

// Failure is raised for configuration and access errors.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// ValidationFailure is raised for evaluation errors in user formulas.
type ValidationFailure struct {
	Message string
	Source  string
}

func (v *ValidationFailure) Error() string {
	if v.Source == "" {
		return v.Message
	}
	return fmt.Sprintf("%s (in %q)", v.Message, v.Source)
}

var depth int

// Fatalf raises a Failure.
func Fatalf(format string, args ...interface{}) {
	f := &Failure{Message: fmt.Sprintf(format, args...)}
	if depth == 0 {
		log.Printf("ASSERT FAILED: %s", f.Message)
	}
	panic(f)
}

// Check raises a Failure when cond is false.
func Check(cond bool, format string, args ...interface{}) {
	if !cond {
		Fatalf(format, args...)
	}
}

// Validation raises a ValidationFailure.
func Validation(source string, format string, args ...interface{}) {
	panic(&ValidationFailure{Message: fmt.Sprintf(format, args...), Source: source})
}

// InScope reports whether a recovery scope is open.
func InScope() bool {
	return depth > 0
}

// Recover runs fn inside a recovery scope. Failures and validation failures
// raised by fn are returned; any other panic propagates unchanged.
// Scopes nest, and the previous depth is restored however fn exits.
func Recover(fn func()) (err error) {
	depth++
	defer func() {
		depth--
		if r := recover(); r != nil {
			switch v := r.(type) {
			case *Failure:
				err = v
			case *ValidationFailure:
				err = v
			default:
				panic(r)
			}
		}
	}()
	fn()
	return nil
}
