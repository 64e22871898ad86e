package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/yaml.v3"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/fiscal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2 // bad flags, arguments or configuration
	ExitTimeout      = 3 // no Integrador response in time
	ExitDevice       = 4 // fiscal device unavailable
)

// ExitError carries a specific exit code.
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

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(message string, err error) *ExitError {
	return &ExitError{Code: ExitCommandError, Message: message, Err: err}
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, caixa.ErrInvalidTerminal),
		errors.Is(err, integrador.ErrUnknownCommand),
		errors.Is(err, integrador.ErrInvalidIdentifier):
		return ExitCommandError
	case errors.Is(err, integrador.ErrCorrelationTimeout):
		return ExitTimeout
	case errors.Is(err, fiscal.ErrDeviceUnavailable):
		return ExitDevice
	default:
		return ExitFailure
	}
}

// printer writes command results as text, json or yaml.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (printer, error) {
	switch format {
	case "text", "json", "yaml":
		return printer{format: format, w: w}, nil
	default:
		return printer{}, usageError(fmt.Sprintf("unknown format %q", format), nil)
	}
}

// print writes v in the structured formats and calls text otherwise.
func (p printer) print(v any, text func(w io.Writer) error) error {
	switch p.format {
	case "json":
		b, err := json.Marshal(v, jsontext.WithIndent("  "), jsontext.SpaceAfterColon(true), json.Deterministic(true))
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintf(p.w, "%s\n", b)
		return err
	case "yaml":
		// go through json so keys follow the json field names
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return text(p.w)
	}
}
