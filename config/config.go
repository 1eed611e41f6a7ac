package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del proceso.
type Config struct {
	Feeds     FeedsConfig     `yaml:"feeds"`
	Trial     TrialConfig     `yaml:"trial"`
	Execution ExecutionConfig `yaml:"execution"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// FeedsConfig controla los upstreams y los loops de polling.
type FeedsConfig struct {
	APIBase    string `yaml:"api_base" default:"http://localhost:3000" validate:"required,url"`
	GammaBase  string `yaml:"gamma_base" default:"https://gamma-api.polymarket.com" validate:"required,url"`
	GammaLimit int    `yaml:"gamma_limit" default:"100" validate:"gte=1,lte=500"`

	IntervalSeconds             int `yaml:"interval_seconds" default:"30" validate:"gte=1"`
	ShortHorizonIntervalSeconds int `yaml:"short_horizon_interval_seconds" default:"2" validate:"gte=1"`
	PrimaryTimeoutSeconds       int `yaml:"primary_timeout_seconds" default:"5" validate:"gte=1"`
	SecondaryTimeoutSeconds     int `yaml:"secondary_timeout_seconds" default:"10" validate:"gte=1"`

	// Filtro de la lista mostrada
	HideAvoid    bool    `yaml:"hide_avoid" default:"true"`
	MinVolume24h float64 `yaml:"min_volume_24h" validate:"gte=0"`
	MinLiquidity float64 `yaml:"min_liquidity" validate:"gte=0"`
	MaxResults   int     `yaml:"max_results" default:"25" validate:"gte=0"`
}

// TrialConfig controla la ventana de prueba de la sesión.
type TrialConfig struct {
	Seconds    int  `yaml:"seconds" default:"60" validate:"gte=1"`
	Subscribed bool `yaml:"subscribed"`
}

// ExecutionConfig controla el coordinador de trades.
type ExecutionConfig struct {
	Spender string `yaml:"spender" default:"0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E" validate:"required,eth_addr"`

	BalanceTimeoutSeconds int `yaml:"balance_timeout_seconds" default:"10" validate:"gte=1"`
	ApproveTimeoutSeconds int `yaml:"approve_timeout_seconds" default:"120" validate:"gte=1"`
	BuildTimeoutSeconds   int `yaml:"build_timeout_seconds" default:"10" validate:"gte=1"`
	ConfirmTimeoutSeconds int `yaml:"confirm_timeout_seconds" default:"180" validate:"gte=1"`

	SlippageBps   int  `yaml:"slippage_bps" default:"50" validate:"gte=0,lte=10000"`
	MEVProtection bool `yaml:"mev_protection" default:"true"`
	PrivateRoute  bool `yaml:"private_route"`
}

// WalletConfig contiene la conexión on-chain. La clave privada solo viene del entorno.
type WalletConfig struct {
	RPCURL     string `yaml:"rpc_url" default:"https://polygon-rpc.com" validate:"required,url"`
	ChainID    int64  `yaml:"chain_id" default:"137" validate:"gte=1"`
	Collateral string `yaml:"collateral" default:"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174" validate:"required,eth_addr"`
	PrivateKey string `yaml:"-"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn" default:"blackedge.db" validate:"required"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig controla la publicación de snapshots.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0"`
	Channel    string `yaml:"channel" default:"blackedge:snapshots"`
	Key        string `yaml:"key" default:"blackedge:snapshot:latest"`
	TTLSeconds int    `yaml:"ttl_seconds" default:"600" validate:"gte=1"`
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":9090" validate:"required_if=Enabled true"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

var validate = validator.New()

// Load carga la configuración: defaults, YAML, .env y variables de entorno, en ese orden.
// Un path vacío usa solo defaults y entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba rangos y formatos.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config.Validate: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BLACKEDGE_API_BASE"); v != "" {
		cfg.Feeds.APIBase = v
	}
	if v := os.Getenv("BLACKEDGE_PRIVATE_KEY"); v != "" {
		cfg.Wallet.PrivateKey = v
	}
	if v := os.Getenv("BLACKEDGE_RPC_URL"); v != "" {
		cfg.Wallet.RPCURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
}

// ScanInterval devuelve el intervalo del loop general.
func (c *Config) ScanInterval() time.Duration {
	return seconds(c.Feeds.IntervalSeconds)
}

// ShortHorizonInterval devuelve el intervalo del loop de 5 minutos.
func (c *Config) ShortHorizonInterval() time.Duration {
	return seconds(c.Feeds.ShortHorizonIntervalSeconds)
}

// PrimaryTimeout devuelve el timeout del feed principal.
func (c *Config) PrimaryTimeout() time.Duration { return seconds(c.Feeds.PrimaryTimeoutSeconds) }

// SecondaryTimeout devuelve el timeout del feed secundario.
func (c *Config) SecondaryTimeout() time.Duration { return seconds(c.Feeds.SecondaryTimeoutSeconds) }

// CanTrade indica si hay credenciales para firmar.
func (c *Config) CanTrade() bool {
	return c.Wallet.PrivateKey != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
