// Package features builds point-in-time feature vectors for a player.
package features

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/pra-edge/internal/config"
	"github.com/yourusername/pra-edge/internal/ledger"
	"github.com/yourusername/pra-edge/internal/models"
)

const (
	DefaultMinGames          = 5
	DefaultRecentWindow      = 5
	DefaultConsistencyWindow = 10

	// longWindow backs RecentAvg10.
	longWindow  = 10
	maxRestDays = 10.0
)

// Home values. Unknown is used when the event's teams cannot be matched to the player.
const (
	HomeAway    = 0.0
	HomeUnknown = 0.5
	HomeHome    = 1.0
)

// FeatureVector is the fixed scoring schema.
type FeatureVector struct {
	SeasonAvg    float64 `json:"season_avg"`
	RecentAvg    float64 `json:"recent_avg"`
	RecentAvg10  float64 `json:"recent_avg_10"`
	UsageRate    float64 `json:"usage_rate"`
	TrueShooting float64 `json:"true_shooting"`
	Home         float64 `json:"home"`
	RestDays     float64 `json:"rest_days"`
	Line         float64 `json:"line"`
	Margin       float64 `json:"margin"`
	Consistency  float64 `json:"consistency"`
	GamesPlayed  float64 `json:"games_played"`
	MinutesAvg   float64 `json:"minutes_avg"`
}

var names = []string{
	"season_avg", "recent_avg", "recent_avg_10", "usage_rate", "true_shooting", "home",
	"rest_days", "line", "margin", "consistency", "games_played", "minutes_avg",
}

// Names returns the schema in Values order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Values returns the features in schema order.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.SeasonAvg, v.RecentAvg, v.RecentAvg10, v.UsageRate, v.TrueShooting, v.Home,
		v.RestDays, v.Line, v.Margin, v.Consistency, v.GamesPlayed, v.MinutesAvg,
	}
}

// Builder computes feature vectors from a ledger snapshot.
type Builder struct {
	MinGames          int
	RecentWindow      int
	ConsistencyWindow int
}

// NewBuilder applies defaults for zero fields.
func NewBuilder(cfg config.FeatureConfig) *Builder {
	b := &Builder{
		MinGames:          cfg.MinGames,
		RecentWindow:      cfg.RecentWindow,
		ConsistencyWindow: cfg.ConsistencyWindow,
	}
	if b.MinGames <= 0 {
		b.MinGames = DefaultMinGames
	}
	if b.RecentWindow <= 0 {
		b.RecentWindow = DefaultRecentWindow
	}
	if b.ConsistencyWindow <= 0 {
		b.ConsistencyWindow = DefaultConsistencyWindow
	}
	return b
}

// Build computes the vector for key as of asOf against line. Only games
// dated strictly before both asOf and the snapshot cutoff contribute.
func (b *Builder) Build(key models.IdentityKey, asOf time.Time, snap *ledger.Snapshot, line models.PropLine) (FeatureVector, error) {
	games := snap.GamesBefore(key)
	// snapshot cutoff may be later than asOf for live use
	n := len(games)
	for n > 0 && !games[n-1].GameDate.Before(asOf) {
		n--
	}
	games = games[:n]

	if len(games) < b.MinGames {
		return FeatureVector{}, &models.InsufficientDataError{Key: key, AsOf: asOf, Have: len(games), Need: b.MinGames}
	}

	last := games[len(games)-1]
	season := seasonGames(games, last.Season)
	seasonAvg := meanPRA(season)

	v := FeatureVector{
		SeasonAvg:    seasonAvg,
		RecentAvg:    meanPRA(tail(games, b.RecentWindow)),
		RecentAvg10:  meanPRA(tail(games, longWindow)),
		UsageRate:    usageRate(season),
		TrueShooting: trueShooting(season),
		Home:         homeIndicator(line),
		RestDays:     restDays(last.GameDate, asOf),
		Line:         line.Line,
		Margin:       seasonAvg - line.Line,
		Consistency:  Consistency(praValues(tail(games, b.ConsistencyWindow))),
		GamesPlayed:  float64(len(season)),
		MinutesAvg:   meanMinutes(season),
	}

	for i, x := range v.Values() {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return FeatureVector{}, fmt.Errorf("feature %s is not finite for %s", names[i], key)
		}
	}
	return v, nil
}

// Consistency maps the coefficient of variation onto [0.7, 0.98]; a flat
// scoring history approaches 0.98.
func Consistency(values []float64) float64 {
	if len(values) < 2 {
		return 0.7
	}
	avg := mean(values)
	if avg <= 0 {
		return 0.7
	}
	var ss float64
	for _, x := range values {
		ss += (x - avg) * (x - avg)
	}
	cv := math.Sqrt(ss/float64(len(values)-1)) / avg
	return clamp(1-2*cv, 0.7, 0.98)
}

func seasonGames(games []models.PlayerGame, season string) []models.PlayerGame {
	start := len(games)
	for start > 0 && games[start-1].Season == season {
		start--
	}
	return games[start:]
}

func tail(games []models.PlayerGame, n int) []models.PlayerGame {
	if n >= len(games) {
		return games
	}
	return games[len(games)-n:]
}

func praValues(games []models.PlayerGame) []float64 {
	out := make([]float64, len(games))
	for i, g := range games {
		out[i] = g.PRA()
	}
	return out
}

func meanPRA(games []models.PlayerGame) float64 {
	return mean(praValues(games))
}

func meanMinutes(games []models.PlayerGame) float64 {
	var sum float64
	for _, g := range games {
		sum += g.Minutes
	}
	return sum / float64(len(games))
}

// usageRate averages (FGA + 0.44*FTA + TOV) per minute over games with minutes played.
func usageRate(games []models.PlayerGame) float64 {
	var sum float64
	var n int
	for _, g := range games {
		if g.Minutes <= 0 {
			continue
		}
		sum += (g.FieldGoalAttempts + 0.44*g.FreeThrowAttempts + g.Turnovers) / g.Minutes
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func trueShooting(games []models.PlayerGame) float64 {
	var pts, attempts float64
	for _, g := range games {
		pts += g.Points
		attempts += g.FieldGoalAttempts + 0.44*g.FreeThrowAttempts
	}
	if attempts == 0 {
		return 0
	}
	return pts / (2 * attempts)
}

func homeIndicator(line models.PropLine) float64 {
	home, known := line.IsHome()
	switch {
	case !known:
		return HomeUnknown
	case home:
		return HomeHome
	default:
		return HomeAway
	}
}

func restDays(last, asOf time.Time) float64 {
	d := math.Floor(dayStart(asOf).Sub(dayStart(last)).Hours() / 24)
	return clamp(d, 0, maxRestDays)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
