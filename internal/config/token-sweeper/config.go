package token_sweeper_config

import (
	"time"

	"github.com/NordCoder/Reelpass/internal/obs"
	pginfra "github.com/NordCoder/Reelpass/internal/repository/postgres"
)

type SweeperCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Config struct {
	DB      pginfra.Config `mapstructure:"db"`
	Sweeper SweeperCfg     `mapstructure:"sweeper"`
	Log     obs.LogConfig  `mapstructure:"log"`
	OTEL    obs.OTELConfig `mapstructure:"otel"`
}
