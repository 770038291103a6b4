package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/store"
	"github.com/nhle/action-store/internal/theme"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var repair, failFast bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan the database for orphaned actions",
		Long: `Scan the database for actions whose folder no longer exists.

With --repair the orphaned rows are deleted. Without it the command exits
with status 1 when anything is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			reporter := store.ReporterFunc(func(f store.Finding) {
				style := theme.WarnStyle
				if f.Repaired {
					style = theme.OKStyle
				}
				fmt.Fprintf(out, "%s %s\n", style.Render("•"), f)
			})

			res, err := e.store.CheckConsistency(cmd.Context(), reporter, failFast, repair)
			if errors.Is(err, store.ErrInconsistent) {
				fmt.Fprintln(out, theme.ErrorStyle.Render("inconsistent"))
				return &ExitError{Code: ExitFailure, Message: "check failed", Err: err}
			}
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "checking", Err: err}
			}

			switch {
			case len(res.Findings) == 0:
				fmt.Fprintln(out, theme.OKStyle.Render("consistent"))
			case res.Repaired == len(res.Findings):
				fmt.Fprintf(out, "%s %d orphaned action(s) deleted\n", theme.OKStyle.Render("repaired"), res.Repaired)
			default:
				fmt.Fprintf(out, "%s %d finding(s)\n", theme.WarnStyle.Render("inconsistent"), len(res.Findings))
				fmt.Fprintln(out, theme.HelpStyle.Render("run with --repair to delete orphaned actions"))
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d finding(s)", len(res.Findings))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "delete orphaned actions")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first finding")
	return cmd
}
