package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roadprep/roadprep/internal/app"
	"github.com/roadprep/roadprep/internal/profile"
	"github.com/roadprep/roadprep/internal/retry"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/store"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	principal, err := st.Profiles().EnsureLocal(ctx)
	if err != nil {
		return fmt.Errorf("ensure local profile: %w", err)
	}

	count, err := st.Questions().Count(ctx)
	if err != nil {
		return fmt.Errorf("inspect question bank: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("the question bank is empty; load one with: roadprep import <bank.json>")
	}

	cache := profile.NewCache(st.Identity(), st.Profiles(), st.Attempts(), retry.DefaultPolicy())
	defer cache.Close()

	feed := profile.NewMemoryFeed()
	cache.Watch(feed, principal.ID)

	engine := session.NewEngine(
		st.Questions(),
		st.Attempts(),
		cache,
		session.NewStore(st.KV()),
	)

	return app.Run(app.Options{
		Engine: engine,
		Cache:  cache,
		Source: st.Questions(),
		Ledger: st.Attempts(),
		UserID: principal.ID,
	})
}
