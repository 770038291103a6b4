package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/model"
	"github.com/nhle/action-store/internal/theme"
)

// NewFoldersCommand creates the folders command.
func NewFoldersCommand(rootOpts *RootOptions) *cobra.Command {
	var showActions bool

	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List folders with their action counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			folders, err := e.store.Restore(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "restoring", Err: err}
			}

			out := cmd.OutOrStdout()
			if len(folders) == 0 {
				fmt.Fprintln(out, theme.HelpStyle.Render("no folders; run `actionstore init`"))
				return nil
			}

			for _, fc := range folders {
				f := fc.Folder()
				open := 0
				for range fc.Iterator(model.PresetOpen) {
					open++
				}
				name := f.Name
				if f.Closed {
					name += " (closed)"
				}
				fmt.Fprintf(out, "%4d %s %s  %d open / %d\n",
					f.ID, theme.FolderTypeStyle(f.Type).Render(string(f.Type)), name, open, fc.Size())

				if !showActions {
					continue
				}
				for h := range fc.Iterator(model.PresetAll) {
					a := h.Get()
					fmt.Fprintln(out, theme.ListItemStyle.Render(
						fmt.Sprintf("%d [%s] %s", a.ID, a.Resolution, a.Description)))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showActions, "actions", "a", false, "list each folder's actions in order")
	return cmd
}
