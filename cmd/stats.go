package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show attempt statistics and the current credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		principal, err := st.Profiles().EnsureLocal(ctx)
		if err != nil {
			return err
		}
		prof, err := st.Profiles().Get(ctx, principal.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		window, err := st.Attempts().Since(ctx, principal.ID, now.Add(-credits.Window))
		if err != nil {
			return err
		}
		recent, err := st.Attempts().Recent(ctx, principal.ID, 10)
		if err != nil {
			return err
		}

		balance := credits.Compute(window, prof.Premium, now)
		if balance.Unlimited {
			fmt.Println("Plan: premium (unlimited attempts)")
		} else {
			fmt.Printf("Free attempts left this week: practice %d/%d, simulation %d/%d\n",
				balance.Practice, credits.PracticeQuota,
				balance.Simulation, credits.SimulationQuota)
			if balance.RenewalAt != nil {
				fmt.Printf("Next credit: %s\n", balance.RenewalAt.Format(time.RFC1123))
			}
		}

		if len(recent) == 0 {
			fmt.Println("\nNo attempts recorded yet.")
			return nil
		}

		passed := 0
		for _, r := range recent {
			if r.Passed {
				passed++
			}
		}
		fmt.Printf("\nLast %d attempts (%d passed):\n", len(recent), passed)
		for _, r := range recent {
			label := string(r.Mode)
			if r.Category != "" && r.Mode != history.ModeSimulation {
				label += " · " + r.Category
			}
			verdict := "fail"
			if r.Passed {
				verdict = "pass"
			}
			fmt.Printf("  %s  %-45s %3d%%  %s\n",
				r.CreatedAt.Format("2006-01-02 15:04"), label, r.TotalScore, verdict)
		}
		return nil
	},
}
