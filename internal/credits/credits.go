// Package credits derives remaining free quiz attempts from usage history.
//
// Credits are deliberately recomputed from the ledger on every refresh
// rather than kept as a stored counter, so the balance can never drift
// from the history that justifies it.
package credits

import (
	"time"

	"github.com/roadprep/roadprep/internal/history"
)

const (
	// PracticeQuota is the number of free practice or chapter-review
	// attempts per rolling window.
	PracticeQuota = 5

	// SimulationQuota is the number of free simulation attempts per
	// rolling window.
	SimulationQuota = 1

	// Window is the trailing interval in which past attempts count
	// against quota.
	Window = 7 * 24 * time.Hour
)

// Balance is the derived credit state for one user. Never persisted.
type Balance struct {
	// Practice is the remaining free practice/chapter attempts.
	Practice int

	// Simulation is the remaining free simulation attempts.
	Simulation int

	// Unlimited is set for premium users; remaining counts are
	// meaningless when it is true.
	Unlimited bool

	// RenewalAt is the earliest instant at which a currently exhausted
	// mode regains a credit, nil if no mode is exhausted.
	RenewalAt *time.Time
}

// Allows reports whether a session of the given mode may start against
// this balance.
func (b Balance) Allows(mode history.Mode) bool {
	if b.Unlimited {
		return true
	}
	if mode == history.ModeSimulation {
		return b.Simulation > 0
	}
	return b.Practice > 0
}

// Compute derives the Balance from the user's records. Only records with
// CreatedAt inside the trailing window count; simulation attempts draw on
// the simulation quota, everything else on the practice quota. Premium
// users are unlimited and the formula is not applied.
func Compute(records []history.Record, premium bool, now time.Time) Balance {
	if premium {
		return Balance{Unlimited: true}
	}

	cutoff := now.Add(-Window)

	var practice, simulation []history.Record
	for _, r := range records {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		if r.Mode == history.ModeSimulation {
			simulation = append(simulation, r)
		} else {
			practice = append(practice, r)
		}
	}

	b := Balance{
		Practice:   remaining(PracticeQuota, len(practice)),
		Simulation: remaining(SimulationQuota, len(simulation)),
	}

	// A mode contributes a renewal instant only once fully exhausted.
	var renewal *time.Time
	if len(practice) >= PracticeQuota {
		renewal = earlier(renewal, oldest(practice).Add(Window))
	}
	if len(simulation) >= SimulationQuota {
		renewal = earlier(renewal, oldest(simulation).Add(Window))
	}
	b.RenewalAt = renewal

	return b
}

func remaining(quota, used int) int {
	if used >= quota {
		return 0
	}
	return quota - used
}

// oldest returns the earliest CreatedAt among records. Records arrive
// ordered oldest to newest from the ledger, but this does not rely on it.
func oldest(records []history.Record) time.Time {
	t := records[0].CreatedAt
	for _, r := range records[1:] {
		if r.CreatedAt.Before(t) {
			t = r.CreatedAt
		}
	}
	return t
}

func earlier(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		return &candidate
	}
	return current
}
