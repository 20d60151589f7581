package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/models"
)

const oddsSport = "basketball_nba"

// OddsClient polls an odds feed for PRA player props.
type OddsClient struct {
	name       string
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	bookmakers map[string]struct{}
	teams      TeamResolver
	logger     *logrus.Entry
	now        func() time.Time
}

// OddsEvent is an upcoming game from the events endpoint.
type OddsEvent struct {
	ID           string    `json:"id"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

// OddsEventOdds is the per-event odds payload.
type OddsEventOdds struct {
	OddsEvent
	Bookmakers []OddsBookmaker `json:"bookmakers"`
}

// OddsBookmaker holds one book's markets.
type OddsBookmaker struct {
	Key        string       `json:"key"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []OddsMarket `json:"markets"`
}

// OddsMarket holds the outcomes of one market.
type OddsMarket struct {
	Key        string        `json:"key"`
	LastUpdate time.Time     `json:"last_update"`
	Outcomes   []OddsOutcome `json:"outcomes"`
}

// OddsOutcome is one side of a player prop. Description carries the player.
type OddsOutcome struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Point       decimal.Decimal `json:"point"`
}

// NewOddsClient creates a new odds feed client
func NewOddsClient(name string, httpClient *RateLimitedHTTPClient, baseURL, apiKey string, bookmakers []string, teams TeamResolver, logger *logrus.Logger) *OddsClient {
	books := make(map[string]struct{}, len(bookmakers))
	for _, b := range bookmakers {
		books[strings.ToLower(b)] = struct{}{}
	}
	return &OddsClient{
		name:       name,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bookmakers: books,
		teams:      teams,
		logger:     logger.WithFields(logrus.Fields{"component": "datasource", "source": name}),
		now:        time.Now,
	}
}

func (c *OddsClient) Name() string { return c.name }

// Fetch lists upcoming events and collects PRA lines for each. Lines whose
// market update is not after since are dropped.
func (c *OddsClient) Fetch(ctx context.Context, since time.Time) (models.Batch, error) {
	var events []OddsEvent
	q := url.Values{"apiKey": {c.apiKey}, "dateFormat": {"iso"}}
	if err := getJSON(ctx, c.httpClient, c.name, c.baseURL+"/sports/"+oddsSport+"/events?"+q.Encode(), &events); err != nil {
		return models.Batch{}, err
	}

	c.logger.WithField("events", len(events)).Info("Fetched upcoming events")

	var batch models.Batch
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return models.Batch{}, err
		}

		odds, err := c.fetchEventOdds(ctx, ev.ID)
		if err != nil {
			c.logger.WithError(err).WithField("event_id", ev.ID).Warn("Failed to fetch event odds")
			continue
		}
		batch.Lines = append(batch.Lines, c.convertEvent(odds, since)...)
	}
	return batch, nil
}

func (c *OddsClient) fetchEventOdds(ctx context.Context, eventID string) (*OddsEventOdds, error) {
	q := url.Values{
		"apiKey":     {c.apiKey},
		"regions":    {"us"},
		"markets":    {models.MarketPRA},
		"oddsFormat": {"american"},
		"dateFormat": {"iso"},
	}
	u := fmt.Sprintf("%s/sports/%s/events/%s/odds?%s", c.baseURL, oddsSport, url.PathEscape(eventID), q.Encode())

	var odds OddsEventOdds
	if err := getJSON(ctx, c.httpClient, c.name, u, &odds); err != nil {
		return nil, err
	}
	return &odds, nil
}

// convertEvent pairs Over and Under outcomes per player and bookmaker.
func (c *OddsClient) convertEvent(ev *OddsEventOdds, since time.Time) []models.PropLine {
	home := TeamAbbreviation(ev.HomeTeam)
	away := TeamAbbreviation(ev.AwayTeam)

	var lines []models.PropLine
	for _, book := range ev.Bookmakers {
		if len(c.bookmakers) > 0 {
			if _, ok := c.bookmakers[strings.ToLower(book.Key)]; !ok {
				continue
			}
		}
		for _, m := range book.Markets {
			if m.Key != models.MarketPRA {
				continue
			}
			fetched := m.LastUpdate
			if fetched.IsZero() {
				fetched = book.LastUpdate
			}
			if fetched.IsZero() {
				fetched = c.now().UTC()
			}
			if !since.IsZero() && !fetched.After(since) {
				continue
			}

			byPlayer := make(map[string]*models.PropLine)
			var order []string
			for _, o := range m.Outcomes {
				player := o.Description
				if player == "" {
					continue
				}
				team, ok := c.teams.TeamFor(player)
				if !ok {
					c.logger.WithField("player", player).Debug("No team for player, skipping line")
					continue
				}
				key := models.NewIdentityKey(player, team)

				pl, ok := byPlayer[key.String()]
				if !ok {
					pl = &models.PropLine{
						Key:         key,
						EventID:     ev.ID,
						Line:        o.Point.InexactFloat64(),
						Market:      m.Key,
						Bookmaker:   book.Key,
						HomeTeam:    home,
						AwayTeam:    away,
						FetchedAt:   fetched.UTC(),
						ScheduledAt: ev.CommenceTime.UTC(),
					}
					byPlayer[key.String()] = pl
					order = append(order, key.String())
				}

				price := AmericanToDecimal(o.Price).InexactFloat64()
				switch strings.ToLower(o.Name) {
				case "over":
					pl.OverPrice = price
				case "under":
					pl.UnderPrice = price
				}
			}
			for _, k := range order {
				lines = append(lines, *byPlayer[k])
			}
		}
	}
	return lines
}

// AmericanToDecimal converts American odds (+150, -110) to decimal odds.
func AmericanToDecimal(american decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)
	switch {
	case american.IsPositive():
		return one.Add(american.Div(hundred)).Round(4)
	case american.IsNegative():
		return one.Add(hundred.Div(american.Abs())).Round(4)
	default:
		return decimal.Zero
	}
}

// getJSON issues a GET through the rate-limited client and decodes a 200 body.
func getJSON(ctx context.Context, client *RateLimitedHTTPClient, source, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewDataSourceError(source, ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(ctx, req)
	if err != nil {
		return NewDataSourceError(source, ErrCodeNetworkError, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(source, resp.StatusCode, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewDataSourceError(source, ErrCodeInvalidData, "failed to parse response", err)
	}
	return nil
}
