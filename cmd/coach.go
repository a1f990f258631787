package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/coach"
	"github.com/roadprep/roadprep/internal/store"
)

const coachHistoryLimit = 20

var coachCmd = &cobra.Command{
	Use:   "coach",
	Short: "Get study advice based on your recent attempts",
	Long:  "Sends a digest of your recent runs to an OpenAI model and prints tailored study advice.\nRequires ROADPREP_OPENAI_API_KEY or OPENAI_API_KEY to be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := os.Getenv("ROADPREP_OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		c, err := coach.NewFromAPIKey(apiKey)
		if err != nil {
			return fmt.Errorf("set ROADPREP_OPENAI_API_KEY or OPENAI_API_KEY: %w", err)
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
		principal, err := st.Profiles().EnsureLocal(ctx)
		if err != nil {
			return fmt.Errorf("ensure local profile: %w", err)
		}

		records, err := st.Attempts().Recent(ctx, principal.ID, coachHistoryLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		advice, err := c.Advise(ctx, records)
		if err != nil {
			if errors.Is(err, coach.ErrNoHistory) {
				fmt.Println("No attempts yet. Finish a practice run first, then come back.")
				return nil
			}
			return err
		}

		fmt.Println(advice)
		return nil
	},
}
