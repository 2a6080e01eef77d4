package featureflags

import (
	"net/http"
	"time"

	"github.com/Unleash/unleash-client-go/v3"
	"github.com/rs/zerolog/log"
)

// Flags used by the ledger
const (
	MaintenanceMode  = "ledger.maintenance-mode"
	DisableTransfers = "ledger.transfers.disable"
	DisableHolds     = "ledger.holds.disable"
)

// Config structure
type Config struct {
	Enabled         bool
	URL             string        `mapstructure:"url"`
	AppName         string        `mapstructure:"app_name"`
	InstanceID      string        `mapstructure:"instance_id"`
	Environment     string        `mapstructure:"environment"`
	Token           string        `mapstructure:"token"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

var initialized bool

type listener struct{}

func (listener) OnError(err error) {
	log.Warn().Err(err).Str("lib", "unleash").Msg("Feature flags error")
}

func (listener) OnWarning(err error) {
	log.Debug().Err(err).Str("lib", "unleash").Msg("Feature flags warning")
}

func (listener) OnReady() {
	log.Info().Str("lib", "unleash").Msg("Feature flags ready")
}

// Initialize the unleash client. Nothing happens when feature flags are disabled.
func Initialize(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 15 * time.Second
	}
	opts := []unleash.ConfigOption{
		unleash.WithUrl(cfg.URL),
		unleash.WithAppName(cfg.AppName),
		unleash.WithInstanceId(cfg.InstanceID),
		unleash.WithEnvironment(cfg.Environment),
		unleash.WithRefreshInterval(refresh),
		unleash.WithListener(listener{}),
	}
	if cfg.Token != "" {
		opts = append(opts, unleash.WithCustomHeaders(http.Header{"Authorization": {cfg.Token}}))
	}
	if err := unleash.Initialize(opts...); err != nil {
		return err
	}
	initialized = true
	return nil
}

// IsEnabled returns false for every flag when the client was not initialized
func IsEnabled(feature string, options ...unleash.FeatureOption) bool {
	if !initialized {
		return false
	}
	options = append(options, unleash.WithFallback(false))
	return unleash.IsEnabled(feature, options...)
}

// Close godoc
func Close() {
	if !initialized {
		return
	}
	if err := unleash.Close(); err != nil {
		log.Error().Err(err).Str("lib", "unleash").Msg("Unable to close feature flags client")
	}
	initialized = false
}
