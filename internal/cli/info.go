package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/theme"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database type, schema version and counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			folders, err := e.store.Restore(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "restoring", Err: err}
			}
			version, err := e.store.SchemaVersion(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "reading schema version", Err: err}
			}

			actions := 0
			for _, fc := range folders {
				actions += fc.Size()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.HeaderStyle.Render("action store"))
			row := func(k string, v any) {
				fmt.Fprintf(out, "%s %v\n", theme.LabelStyle.Render(k), v)
			}
			row("path", e.cfg.Database.Path)
			row("database", e.store.DatabaseType(ctx))
			row("schema", fmt.Sprintf("v%d", version))
			row("folders", len(folders))
			row("actions", actions)
			row("next folder id", e.store.NextFolderID())
			row("next action id", e.store.NextActionID())
			return nil
		},
	}
}
