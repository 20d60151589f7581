package datasource

import (
	"context"
	"strings"
	"sync"

	"github.com/yourusername/pra-edge/internal/models"
	"github.com/yourusername/pra-edge/internal/repository"
)

// teamAbbreviations maps odds-feed team names to box-score abbreviations.
var teamAbbreviations = map[string]string{
	"atlanta hawks":          "ATL",
	"boston celtics":         "BOS",
	"brooklyn nets":          "BRK",
	"charlotte hornets":      "CHO",
	"chicago bulls":          "CHI",
	"cleveland cavaliers":    "CLE",
	"dallas mavericks":       "DAL",
	"denver nuggets":         "DEN",
	"detroit pistons":        "DET",
	"golden state warriors":  "GSW",
	"houston rockets":        "HOU",
	"indiana pacers":         "IND",
	"los angeles clippers":   "LAC",
	"la clippers":            "LAC",
	"los angeles lakers":     "LAL",
	"memphis grizzlies":      "MEM",
	"miami heat":             "MIA",
	"milwaukee bucks":        "MIL",
	"minnesota timberwolves": "MIN",
	"new orleans pelicans":   "NOP",
	"new york knicks":        "NYK",
	"oklahoma city thunder":  "OKC",
	"orlando magic":          "ORL",
	"philadelphia 76ers":     "PHI",
	"phoenix suns":           "PHO",
	"portland trail blazers": "POR",
	"sacramento kings":       "SAC",
	"san antonio spurs":      "SAS",
	"toronto raptors":        "TOR",
	"utah jazz":              "UTA",
	"washington wizards":     "WAS",
}

// TeamAbbreviation returns the abbreviation for a full team name. Values that
// already look like abbreviations pass through normalized.
func TeamAbbreviation(name string) string {
	if abbr, ok := teamAbbreviations[strings.ToLower(strings.TrimSpace(name))]; ok {
		return abbr
	}
	return models.NormalizeTeam(name)
}

// TeamResolver finds the current team of a player by normalized name.
type TeamResolver interface {
	TeamFor(name string) (team string, ok bool)
}

// RosterResolver answers from the most recent game stored for each player.
type RosterResolver struct {
	mu    sync.RWMutex
	teams map[string]string
}

// NewRosterResolver creates an empty resolver.
func NewRosterResolver() *RosterResolver {
	return &RosterResolver{teams: make(map[string]string)}
}

// Refresh rebuilds the roster from the player game repository.
func (r *RosterResolver) Refresh(ctx context.Context, repo repository.PlayerGameRepository) error {
	games, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}
	teams := make(map[string]string)
	// ListAll is date ordered so later games overwrite earlier teams
	for _, g := range games {
		teams[g.Key.Name] = g.Key.Team
	}

	r.mu.Lock()
	r.teams = teams
	r.mu.Unlock()
	return nil
}

// Set records a player's team.
func (r *RosterResolver) Set(name, team string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[models.NormalizeName(name)] = models.NormalizeTeam(team)
}

func (r *RosterResolver) TeamFor(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	team, ok := r.teams[models.NormalizeName(name)]
	return team, ok
}
