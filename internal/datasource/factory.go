package datasource

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/pra-edge/internal/config"
)

// SourceKind represents the type of data source
type SourceKind string

const (
	OddsSourceKind     SourceKind = "odds"
	BoxScoreSourceKind SourceKind = "box_score"
	FileSourceKind     SourceKind = "file"
)

// Factory creates Source implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	teams  TeamResolver
}

// NewFactory creates a new data source factory. teams is required for odds sources.
func NewFactory(teams TeamResolver, logger *logrus.Logger) *Factory {
	return &Factory{logger: logger, teams: teams}
}

// NewSource creates a Source for one configuration entry
func (f *Factory) NewSource(cfg config.SourceConfig) (Source, error) {
	switch SourceKind(cfg.Kind) {
	case OddsSourceKind:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("odds source %s requires an api key", cfg.Name)
		}
		if f.teams == nil {
			return nil, fmt.Errorf("odds source %s requires a team resolver", cfg.Name)
		}
		client := NewRateLimitedHTTPClient(HTTPClientConfigFor(cfg), f.logger)
		return NewOddsClient(cfg.Name, client, cfg.BaseURL, cfg.APIKey, cfg.Bookmakers, f.teams, f.logger), nil

	case BoxScoreSourceKind:
		client := NewRateLimitedHTTPClient(HTTPClientConfigFor(cfg), f.logger)
		return NewBoxScoreClient(cfg.Name, client, cfg.BaseURL, cfg.APIKey, f.logger), nil

	case FileSourceKind:
		return NewFileSource(cfg.Name, cfg.Path), nil

	default:
		return nil, fmt.Errorf("unknown data source kind: %s", cfg.Kind)
	}
}

// NewSources creates all enabled data sources from configuration
func (f *Factory) NewSources(cfg config.SyncConfig) ([]Source, error) {
	var sources []Source

	for _, srcCfg := range cfg.Sources {
		if !srcCfg.Enabled {
			f.logger.WithField("source", srcCfg.Name).Debug("Skipping disabled data source")
			continue
		}

		source, err := f.NewSource(srcCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create data source %s: %w", srcCfg.Name, err)
		}

		sources = append(sources, source)
		f.logger.WithField("source", srcCfg.Name).Info("Created data source")
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled data sources configured")
	}

	return sources, nil
}
