// Package ledger is a read-only, indexed view of the synchronized history.
// Point-in-time access goes through Snapshot, which hides every game dated
// at or after its cutoff.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
)

// Ledger is immutable after construction and safe for concurrent readers.
type Ledger struct {
	games    map[models.IdentityKey][]models.PlayerGame
	lines    []models.PropLine
	outcomes map[string]models.Outcome
	gameRows int
}

// New indexes the given records. Games are sorted per key by GameDate.
func New(games []*models.PlayerGame, lines []*models.PropLine, outcomes []*models.Outcome) *Ledger {
	l := &Ledger{
		games:    make(map[models.IdentityKey][]models.PlayerGame),
		lines:    make([]models.PropLine, 0, len(lines)),
		outcomes: make(map[string]models.Outcome, len(outcomes)),
		gameRows: len(games),
	}

	for _, g := range games {
		l.games[g.Key] = append(l.games[g.Key], *g)
	}
	for _, gs := range l.games {
		sort.SliceStable(gs, func(i, j int) bool { return gs[i].GameDate.Before(gs[j].GameDate) })
	}

	for _, ln := range lines {
		l.lines = append(l.lines, *ln)
	}
	sort.SliceStable(l.lines, func(i, j int) bool {
		if !l.lines[i].ScheduledAt.Equal(l.lines[j].ScheduledAt) {
			return l.lines[i].ScheduledAt.Before(l.lines[j].ScheduledAt)
		}
		return l.lines[i].FetchedAt.Before(l.lines[j].FetchedAt)
	})

	for _, o := range outcomes {
		l.outcomes[o.RecordKey()] = *o
	}
	return l
}

// Load reads the full ledger from the repositories.
func Load(ctx context.Context, repos *repository.Repositories) (*Ledger, error) {
	games, err := repos.PlayerGame.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load player games: %w", err)
	}
	lines, err := repos.PropLine.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load prop lines: %w", err)
	}
	outcomes, err := repos.Outcome.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}
	return New(games, lines, outcomes), nil
}

// Lines returns every prop line observation ordered by scheduled then fetch time.
func (l *Ledger) Lines() []models.PropLine {
	out := make([]models.PropLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// Outcome looks up the settled result for a player in an event.
func (l *Ledger) Outcome(key models.IdentityKey, eventID string) (models.Outcome, bool) {
	o, ok := l.outcomes[models.Outcome{Key: key, EventID: eventID}.RecordKey()]
	return o, ok
}

// Keys returns every identity key with at least one game, sorted.
func (l *Ledger) Keys() []models.IdentityKey {
	keys := make([]models.IdentityKey, 0, len(l.games))
	for k := range l.games {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Counts reports the number of games, lines and outcomes held.
func (l *Ledger) Counts() (games, lines, outcomes int) {
	return l.gameRows, len(l.lines), len(l.outcomes)
}

// Snapshot returns a view restricted to games with GameDate strictly before cutoff.
func (l *Ledger) Snapshot(cutoff time.Time) *Snapshot {
	return &Snapshot{ledger: l, cutoff: cutoff}
}

// Snapshot is a point-in-time view of a Ledger.
type Snapshot struct {
	ledger *Ledger
	cutoff time.Time
}

// Cutoff is the exclusive upper bound on visible game dates.
func (s *Snapshot) Cutoff() time.Time {
	return s.cutoff
}

// GamesBefore returns a copy of key's games dated strictly before the cutoff,
// oldest first.
func (s *Snapshot) GamesBefore(key models.IdentityKey) []models.PlayerGame {
	all := s.ledger.games[key]
	n := sort.Search(len(all), func(i int) bool { return !all[i].GameDate.Before(s.cutoff) })
	out := make([]models.PlayerGame, n)
	copy(out, all[:n])
	return out
}
