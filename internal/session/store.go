package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/question"
)

// TTLs after which a stored session is logically absent even if the
// underlying bytes survive.
const (
	PracticeTTL   = time.Hour
	SimulationTTL = 2 * time.Hour
)

// KV is the durable key-value contract the session store persists into.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store persists one in-progress session per (mode, category) key so a
// quiz survives a crash or restart within its TTL.
type Store struct {
	kv  KV
	now func() time.Time
}

// NewStore creates a session store over the given KV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// savedSession is the wire form of a persisted session.
type savedSession struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Mode           history.Mode        `json:"mode"`
	Category       string              `json:"category,omitempty"`
	SavedAt        int64               `json:"saved_at"`
	StartedAt      int64               `json:"started_at"`
	Questions      []question.Question `json:"questions"`
	Answers        map[int]Answer      `json:"answers"`
	CurrentIndex   int                 `json:"current_index"`
	ElapsedSeconds int                 `json:"elapsed_seconds"`
}

func storageKey(mode history.Mode, category string) string {
	if category == "" {
		return fmt.Sprintf("session/%s", mode)
	}
	return fmt.Sprintf("session/%s/%s", mode, category)
}

func ttlFor(mode history.Mode) time.Duration {
	if mode == history.ModeSimulation {
		return SimulationTTL
	}
	return PracticeTTL
}

// Save writes the session's current state. Called on every mutation;
// cheap relative to a quiz interaction.
func (st *Store) Save(ctx context.Context, s *Session) error {
	saved := savedSession{
		ID:             s.ID,
		UserID:         s.UserID,
		Mode:           s.Mode,
		Category:       s.Category,
		SavedAt:        st.now().Unix(),
		StartedAt:      s.StartedAt.Unix(),
		Questions:      s.Questions,
		Answers:        s.Answers,
		CurrentIndex:   s.CurrentIndex,
		ElapsedSeconds: s.ElapsedSeconds,
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := st.kv.Set(ctx, storageKey(s.Mode, s.Category), string(data)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Load returns the stored session for (mode, category), or ok=false when
// none exists, the entry has expired, or the bytes fail to parse. Expired
// and corrupt entries mean "start fresh", never an error.
func (st *Store) Load(ctx context.Context, mode history.Mode, category string) (*Session, bool) {
	raw, ok, err := st.kv.Get(ctx, storageKey(mode, category))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: session load failed, starting fresh: %v\n", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var saved savedSession
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, false
	}
	if len(saved.Questions) == 0 {
		return nil, false
	}

	age := st.now().Sub(time.Unix(saved.SavedAt, 0))
	if age > ttlFor(mode) {
		return nil, false
	}

	s := &Session{
		ID:             saved.ID,
		UserID:         saved.UserID,
		Mode:           saved.Mode,
		Category:       saved.Category,
		Questions:      saved.Questions,
		Answers:        saved.Answers,
		CurrentIndex:   saved.CurrentIndex,
		ElapsedSeconds: saved.ElapsedSeconds,
		StartedAt:      time.Unix(saved.StartedAt, 0),
		Phase:          PhaseInProgress,
		store:          st,
	}
	if s.Answers == nil {
		s.Answers = make(map[int]Answer)
	}
	return s, true
}

// Clear removes the stored entry. Idempotent: clearing an absent key
// succeeds.
func (st *Store) Clear(ctx context.Context, mode history.Mode, category string) error {
	return st.kv.Remove(ctx, storageKey(mode, category))
}
