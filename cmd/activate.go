package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/store"
)

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Toggle the premium plan",
	Long:  "Switches the local profile between the free plan (weekly credits) and premium (unlimited runs).",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		principal, err := st.Profiles().EnsureLocal(ctx)
		if err != nil {
			return fmt.Errorf("ensure local profile: %w", err)
		}

		current, err := st.Profiles().Get(ctx, principal.ID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}

		off, _ := cmd.Flags().GetBool("off")
		target := !off
		if current.Premium == target {
			if target {
				fmt.Println("Premium is already active.")
			} else {
				fmt.Println("Already on the free plan.")
			}
			return nil
		}

		updated, err := st.Profiles().SetPremium(ctx, principal.ID, target)
		if err != nil {
			return fmt.Errorf("update plan: %w", err)
		}

		if updated.Premium {
			fmt.Println("Premium activated. Practice runs and simulations are now unlimited.")
		} else {
			fmt.Println("Back on the free plan. Weekly credits apply again.")
		}
		return nil
	},
}

func init() {
	activateCmd.Flags().Bool("off", false, "Switch back to the free plan")
}
