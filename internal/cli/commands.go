package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"census/internal/citizens/models"
	id "census/pkg/domain"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every import and restart import ids at 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return NewExitError(ExitCommandError, "reset deletes all imports; pass --yes to confirm")
			}
			return rootOpts.withRegistry(cmd.Context(), func(r Registry) error {
				if err := r.Reset(cmd.Context()); err != nil {
					return serviceError("reset", err)
				}
				return rootOpts.formatter(cmd).Success(map[string]string{"status": "reset"}, "registry reset")
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion of all imports")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json|->",
		Short: "Validate and store an import from a JSON file",
		Long: `Validate and store an import.

The file has the same shape as the POST /imports body:
{"citizens": [{"citizen_id": 1, ...}]}. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			citizens, err := readImport(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return rootOpts.withRegistry(cmd.Context(), func(r Registry) error {
				importID, err := r.Import(cmd.Context(), citizens)
				if err != nil {
					return serviceError("import", err)
				}
				return rootOpts.formatter(cmd).Success(
					map[string]id.ImportID{"import_id": importID},
					fmt.Sprintf("import_id: %d (%d citizens)", importID, len(citizens)),
				)
			})
		},
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <import_id>",
		Short: "Print age percentiles per town for an import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importID, err := id.ParseImportID(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid import id", err)
			}
			return rootOpts.withRegistry(cmd.Context(), func(r Registry) error {
				stats, err := r.AgePercentiles(cmd.Context(), importID)
				if err != nil {
					return serviceError("stats", err)
				}
				f := rootOpts.formatter(cmd)
				if f.Format == "json" {
					return f.Success(stats, "")
				}
				return writeStatsTable(f.Writer, stats)
			})
		},
	}
}

func readImport(stdin io.Reader, path string) ([]*models.Citizen, error) {
	var in io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open import file", err)
		}
		defer file.Close()
		in = file
	}

	var req models.ImportRequest
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, WrapExitError(ExitRejected, "decode import file", err)
	}
	citizens, err := req.Parse()
	if err != nil {
		return nil, WrapExitError(ExitRejected, "invalid import", err)
	}
	return citizens, nil
}

func writeStatsTable(w io.Writer, stats []models.TownAgeStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOWN\tP50\tP75\tP99")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\n", s.Town, s.P50, s.P75, s.P99)
	}
	return tw.Flush()
}
