package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete attempt history and saved sessions",
	Long:  "Removes all recorded attempts and any saved in-progress session. The question bank and profile stay.",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to delete without --yes")
		}

		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		if _, err := st.DB().ExecContext(ctx, `DELETE FROM attempts`); err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
		if _, err := st.DB().ExecContext(ctx, `DELETE FROM kv`); err != nil {
			return fmt.Errorf("clear saved sessions: %w", err)
		}

		fmt.Println("History and saved sessions cleared. Credits are back to full.")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm deletion")
}
