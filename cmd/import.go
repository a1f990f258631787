package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/question"
	"github.com/roadprep/roadprep/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <bank.json>",
	Short: "Load a question bank file into the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read bank file: %w", err)
		}

		questions, err := question.ParseBank(data)
		if err != nil {
			return fmt.Errorf("parse bank file: %w", err)
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

		if err := st.Questions().Insert(cmd.Context(), questions); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}

		total, err := st.Questions().Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d questions (%d total in bank).\n", len(questions), total)
		return nil
	},
}
