package errors

import (
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if ie, ok := err.(*InflightError); ok {
		return a.exitCodeFromInflight(ie)
	}

	return 1
}

// exitCodeFromInflight maps InflightError categories to exit codes.
func (a *CLIErrorAdapter) exitCodeFromInflight(err *InflightError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryStorage, CategoryNATS:
		return 8 // External system error
	case CategoryState:
		return 9 // Registry state error
	case CategoryDaemon, CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// Report logs an error appropriately for CLI consumption and returns its exit code.
func (a *CLIErrorAdapter) Report(err error) int {
	if err == nil {
		return 0
	}

	if ie, ok := err.(*InflightError); ok {
		attrs := []any{"category", string(ie.Category), "severity", string(ie.Severity)}
		for k, v := range ie.Context {
			attrs = append(attrs, k, v)
		}
		if a.verbose && ie.Cause != nil {
			attrs = append(attrs, "cause", ie.Cause.Error())
		}
		a.logger.Error(ie.Message, attrs...)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	return a.ExitCodeFor(err)
}
