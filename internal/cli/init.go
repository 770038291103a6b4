package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/config"
	"github.com/nhle/action-store/internal/model"
	"github.com/nhle/action-store/internal/theme"
)

// builtinFolders are created by init when missing.
var builtinFolders = []struct {
	name string
	typ  model.FolderType
}{
	{"Inbox", model.FolderInbox},
	{"Queue", model.FolderQueue},
	{"Resolved", model.FolderResolved},
	{"Deleted", model.FolderDeleted},
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var writeConfig, seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and its built-in folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if writeConfig {
				if _, err := os.Stat(rootOpts.ConfigPath); os.IsNotExist(err) {
					cfg := config.Default()
					if rootOpts.DBPath != "" {
						cfg.Database.Path = rootOpts.DBPath
					}
					if err := config.SaveConfig(rootOpts.ConfigPath, cfg); err != nil {
						return &ExitError{Code: ExitCommandError, Message: "writing config", Err: err}
					}
				}
			}

			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if seed {
				if _, err := e.store.Restore(ctx); err != nil {
					return &ExitError{Code: ExitCommandError, Message: "restoring folders", Err: err}
				}
				for _, b := range builtinFolders {
					if len(e.store.FoldersByType(b.typ)) > 0 {
						continue
					}
					fc, err := e.store.NewFolder(ctx, 0, b.name, b.typ)
					if err != nil {
						return &ExitError{Code: ExitCommandError, Message: "creating " + b.name, Err: err}
					}
					fmt.Fprintf(out, "%s %s (id %d)\n", theme.OKStyle.Render("created"), b.name, fc.ID())
				}
			}

			version, err := e.store.SchemaVersion(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "reading schema version", Err: err}
			}
			fmt.Fprintf(out, "initialized %s (schema v%d)\n", e.cfg.Database.Path, version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", true, "write a default config file if none exists")
	cmd.Flags().BoolVar(&seed, "seed", true, "create missing built-in folders")
	return cmd
}
