package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/versebase/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // operation failure (import aborted, search timeout, quota)
	ExitCommandError = 2 // command error (bad flags, missing files, bad config)
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code and context message.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, defaulting to
// ExitFailure for plain errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// response is the JSON envelope for all commands.
type response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *responseError `json:"error,omitempty"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success renders data. In text mode data's String/default formatting is
// printed; in JSON mode it becomes the data payload.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(response{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error renders err. Structured store errors surface their code so scripts
// can branch on it without parsing messages.
func (f *OutputFormatter) Error(err error) error {
	code := "INTERNAL"
	var se *engine.StoreError
	if errors.As(err, &se) {
		code = string(se.Code)
	}

	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(response{
			Status: "error",
			Error:  &responseError{Code: code, Message: err.Error()},
		})
	}
	fmt.Fprintf(f.Writer, "error [%s]: %v\n", code, err)
	return nil
}
