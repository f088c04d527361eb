// Package cli implements censusctl, the admin command line for the registry.
package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"census/internal/citizens/models"
	id "census/pkg/domain"
	dErrors "census/pkg/domain-errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitRejected     = 1 // the registry refused the request (validation, not found)
	ExitCommandError = 2 // bad arguments, unreadable files, unreachable backends
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Registry is the part of the registry service the CLI drives.
type Registry interface {
	Import(ctx context.Context, citizens []*models.Citizen) (id.ImportID, error)
	AgePercentiles(ctx context.Context, importID id.ImportID) ([]models.TownAgeStats, error)
	Reset(ctx context.Context) error
}

// Opener connects to the configured backends. The returned close function
// releases them.
type Opener func(ctx context.Context) (Registry, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	open   Opener
}

// NewRootCommand creates the censusctl root command.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "censusctl",
		Short: "Administer the census registry",
		Long: `Administer the census registry directly against its backends.

Connection settings are read from the same environment variables as the
server (DATABASE_URL, REDIS_URL, KAFKA_BROKERS).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

// withRegistry opens the backends for the duration of fn.
func (o *RootOptions) withRegistry(ctx context.Context, fn func(Registry) error) (err error) {
	registry, closeFn, err := o.open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	defer func() {
		if closeErr := closeFn(); closeErr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "close", closeErr)
		}
	}()
	return fn(registry)
}

// ExitError carries the process exit code of a failed command.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors the registry
// reports as client errors map to ExitRejected, everything else to
// ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// serviceError classifies an error returned by the registry.
func serviceError(message string, err error) error {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		return WrapExitError(ExitCommandError, message, err)
	default:
		return WrapExitError(ExitRejected, message, err)
	}
}
