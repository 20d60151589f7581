package datasource

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/models"
)

// BoxScoreClient pulls per-player game logs and settled PRA outcomes from a
// JSON statistics feed.
type BoxScoreClient struct {
	name       string
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	logger     *logrus.Entry
}

// BoxScoreResponse is the /games payload.
type BoxScoreResponse struct {
	Games    []BoxScoreGame    `json:"games"`
	Outcomes []BoxScoreOutcome `json:"outcomes"`
}

// BoxScoreGame is one player's line in one game. Column names follow the
// basketball-reference box score.
type BoxScoreGame struct {
	Player    string    `json:"player"`
	Team      string    `json:"team"`
	GameID    string    `json:"game_id"`
	GameDate  time.Time `json:"game_date"`
	Season    string    `json:"season"`
	Opponent  string    `json:"opponent"`
	Home      bool      `json:"home"`
	PTS       float64   `json:"pts"`
	TRB       float64   `json:"trb"`
	AST       float64   `json:"ast"`
	MP        float64   `json:"mp"`
	FGPct     float64   `json:"fg_pct"`
	FG3Pct    float64   `json:"fg3_pct"`
	FTPct     float64   `json:"ft_pct"`
	FGA       float64   `json:"fga"`
	FTA       float64   `json:"fta"`
	TOV       float64   `json:"tov"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoxScoreOutcome is the settled PRA for a player in an odds event.
type BoxScoreOutcome struct {
	Player    string    `json:"player"`
	Team      string    `json:"team"`
	EventID   string    `json:"event_id"`
	Actual    float64   `json:"actual"`
	SettledAt time.Time `json:"settled_at"`
}

// NewBoxScoreClient creates a new box score client
func NewBoxScoreClient(name string, httpClient *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *BoxScoreClient {
	return &BoxScoreClient{
		name:       name,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.WithFields(logrus.Fields{"component": "datasource", "source": name}),
	}
}

func (c *BoxScoreClient) Name() string { return c.name }

// Fetch asks the feed for rows updated after since.
func (c *BoxScoreClient) Fetch(ctx context.Context, since time.Time) (models.Batch, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u := c.baseURL + "/games"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var resp BoxScoreResponse
	if err := getJSON(ctx, c.httpClient, c.name, u, &resp); err != nil {
		return models.Batch{}, err
	}

	batch := models.Batch{
		Games:    make([]models.PlayerGame, 0, len(resp.Games)),
		Outcomes: make([]models.Outcome, 0, len(resp.Outcomes)),
	}
	for _, g := range resp.Games {
		batch.Games = append(batch.Games, convertBoxScoreGame(g))
	}
	for _, o := range resp.Outcomes {
		batch.Outcomes = append(batch.Outcomes, models.Outcome{
			Key:       models.NewIdentityKey(o.Player, o.Team),
			EventID:   o.EventID,
			Actual:    o.Actual,
			SettledAt: o.SettledAt.UTC(),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"games":    len(batch.Games),
		"outcomes": len(batch.Outcomes),
	}).Info("Fetched box scores")
	return batch, nil
}

func convertBoxScoreGame(g BoxScoreGame) models.PlayerGame {
	period := g.GameID
	if period == "" {
		period = g.GameDate.UTC().Format("2006-01-02")
	}
	return models.PlayerGame{
		Key:               models.NewIdentityKey(g.Player, g.Team),
		Period:            period,
		GameDate:          g.GameDate.UTC(),
		Season:            g.Season,
		Opponent:          models.NormalizeTeam(g.Opponent),
		Home:              g.Home,
		Points:            g.PTS,
		Rebounds:          g.TRB,
		Assists:           g.AST,
		Minutes:           g.MP,
		FieldGoalPct:      g.FGPct,
		ThreePointPct:     g.FG3Pct,
		FreeThrowPct:      g.FTPct,
		FieldGoalAttempts: g.FGA,
		FreeThrowAttempts: g.FTA,
		Turnovers:         g.TOV,
		ObservedAt:        g.UpdatedAt.UTC(),
	}
}
