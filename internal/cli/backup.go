package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/store"
)

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string
	var keep int

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the database and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			if dir == "" {
				dir = e.cfg.Backup.Dir
			}
			if !cmd.Flags().Changed("keep") {
				keep = e.cfg.Backup.Keep
			}

			path, err := e.store.Backup(cmd.Context(), dir)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "backing up", Err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			removed, err := store.PruneBackups(dir, keep)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "pruning backups", Err: err}
			}
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (overrides config)")
	cmd.Flags().IntVar(&keep, "keep", 0, "number of backups to keep (overrides config)")
	return cmd
}
