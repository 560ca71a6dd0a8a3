package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stkolmagorov/marketplace/internal/postgres"
	"github.com/stkolmagorov/marketplace/modules/marketplace/archiver"
	"github.com/stkolmagorov/marketplace/pkg/logger"
	"github.com/stkolmagorov/marketplace/pkg/logger/slogx"
	"github.com/stkolmagorov/marketplace/pkg/middleware/requestcontext"
	"github.com/stkolmagorov/marketplace/pkg/middleware/requestlogger"
)

var (
	parseOnce sync.Once
	config    = &Config{
		Logger: logger.Config{
			Output: "text",
		},
		HTTPServer: HTTPServer{
			Port: 8080,
		},
		Engine: Engine{
			EscrowAccount: "escrow",
			CommissionBps: 500,
		},
	}
)

type Config struct {
	Logger     logger.Config   `mapstructure:"logger"`
	Postgres   postgres.Config `mapstructure:"postgres"`
	HTTPServer HTTPServer      `mapstructure:"http_server"`
	Engine     Engine          `mapstructure:"engine"`
	Archiver   archiver.Config `mapstructure:"archiver"`
	InMemory   bool            `mapstructure:"in_memory"`
}

type HTTPServer struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

// Engine holds bootstrap values for the ledger-held engine parameters. They
// seed the params row on first run; after that the ledger copy wins and is
// mutated through the admin surface.
type Engine struct {
	EscrowAccount       string `mapstructure:"escrow_account"`
	AuthorizerPublicKey string `mapstructure:"authorizer_public_key"`
	CommissionBps       uint64 `mapstructure:"commission_bps"`
}

// Parse reads the configuration from the given file (or ./config.yaml when
// empty) with environment variable overrides. It is safe to call more than
// once; only the first call parses.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	parseOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}

// Load returns the parsed configuration. Parse must have been called first.
func Load() Config {
	return *config
}

// BindPFlag binds a cobra flag to a configuration key.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind flag to configuration", slogx.Error(err), slog.String("key", key))
	}
}
