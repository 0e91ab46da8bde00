package api_config

import (
	"time"

	sec "github.com/NordCoder/Reelpass/internal/auth"
	"github.com/NordCoder/Reelpass/internal/obs"
	"github.com/NordCoder/Reelpass/internal/outbox"
	kafkarepo "github.com/NordCoder/Reelpass/internal/repository/kafka"
	pg "github.com/NordCoder/Reelpass/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Reelpass/internal/repository/redis"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
	// Storage selects the persistence backend: postgres or memory.
	Storage string `mapstructure:"storage"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
		Version:     app.Version,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "reelpass/" + app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

type Auth struct {
	SecretKey    string        `mapstructure:"secret_key"`
	PepperSecret string        `mapstructure:"pepper_secret"`
	Algorithm    string        `mapstructure:"algorithm"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookiePath   string        `mapstructure:"cookie_path"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// CodecConfig is the JWT codec view of the auth section.
func (a *Auth) CodecConfig() sec.CodecConfig {
	return sec.CodecConfig{
		Secret:     []byte(a.SecretKey),
		Algorithm:  a.Algorithm,
		AccessTTL:  a.AccessTTL,
		RefreshTTL: a.RefreshTTL,
	}
}

// Config is the api process configuration. Secrets come from the
// environment; see Load.
type Config struct {
	App    App                 `mapstructure:"app"`
	Server Server              `mapstructure:"server"`
	DB     pg.Config           `mapstructure:"db"`
	Redis  redisrepo.Config    `mapstructure:"redis"`
	Kafka  kafkarepo.Config    `mapstructure:"kafka"`
	Outbox outbox.RunnerConfig `mapstructure:"outbox"`
	OTEL   OTEL                `mapstructure:"otel"`
	Log    Log                 `mapstructure:"log"`
	Auth   Auth                `mapstructure:"auth"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
