package builders

import (
	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/metrics"
)

type MetricsBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewMetricsBuilder(cfg *config.Config, log *logger.Logger) *MetricsBuilder {
	return &MetricsBuilder{
		config: cfg,
		logger: log,
	}
}

// BuildCollectors always returns collectors; observers record even when
// the endpoint is off.
func (b *MetricsBuilder) BuildCollectors() *metrics.Metrics {
	return metrics.New()
}

// BuildServer returns nil when metrics are disabled.
func (b *MetricsBuilder) BuildServer(m *metrics.Metrics, health metrics.HealthFunc) *metrics.Server {
	if !b.config.Metrics.Enabled {
		return nil
	}
	return metrics.NewServer(b.config.Metrics.Listen, metrics.NewRouter(m, health), b.logger)
}
