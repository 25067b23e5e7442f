// internal/errors/errors.go
package errors

import "fmt"

// Category classifies a diagnostic raised while parsing or executing a program.
type Category string

const (
	ParseWarning      Category = "ParseWarning"
	UndeclaredSymbol  Category = "UndeclaredSymbol"
	BadArraySize      Category = "BadArraySize"
	UndefinedFunction Category = "UndefinedFunction"
	OutOfBounds       Category = "OutOfBounds"
	DivideByZero      Category = "DivideByZero"
	BadAssignment     Category = "BadAssignment"
	UnknownToken      Category = "UnknownToken"
	UnsupportedItem   Category = "UnsupportedItem"
)

// Diagnostic is an error raised against a specific statement of the
// interpreted program. Fatal diagnostics stop the run; the rest are
// reported to the output log and execution continues.
type Diagnostic struct {
	Category Category
	Message  string
	Function string
	Fatal    bool
}

func (d *Diagnostic) Error() string {
	if d.Function != "" {
		return fmt.Sprintf("%s: %s (in %s)", d.Category, d.Message, d.Function)
	}
	return fmt.Sprintf("%s: %s", d.Category, d.Message)
}

// NewFatal creates a diagnostic that halts the run.
func NewFatal(cat Category, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: cat, Message: fmt.Sprintf(format, args...), Fatal: true}
}

// NewWarning creates a diagnostic that is reported and skipped.
func NewWarning(cat Category, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// In attributes the diagnostic to the function it was raised from.
func (d *Diagnostic) In(function string) *Diagnostic {
	d.Function = function
	return d
}
