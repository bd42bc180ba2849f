package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. RELAY_MONITOR_STORE_DSN.
const EnvPrefix = "RELAY_MONITOR"

type NetworkConfig struct {
	Name string `yaml:"name"`
}

type OnionooConfig struct {
	Endpoint      string        `yaml:"endpoint" envconfig:"ONIONOO_ENDPOINT"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts uint          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	SnapshotPath  string        `yaml:"snapshot_path" envconfig:"SNAPSHOT_PATH"`
}

type GeoIPConfig struct {
	Path string `yaml:"path" envconfig:"GEOIP_PATH"`
}

type HHIBands struct {
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

type AnalysisConfig struct {
	ReliabilityMinRelays int                   `yaml:"reliability_min_relays"`
	OutlierSigma         float64               `yaml:"outlier_sigma"`
	RarityCutoff         int                   `yaml:"rarity_cutoff"`
	MatchTolerance       float64               `yaml:"match_tolerance"`
	SPOFShare            float64               `yaml:"spof_share"`
	LeaderboardCutoff    int                   `yaml:"leaderboard_cutoff"`
	HHIBands             HHIBands              `yaml:"hhi_bands"`
	Jurisdictions        map[string][]string   `yaml:"jurisdictions"`
	Tables               *ClassificationTables `yaml:"tables"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
	Dsn    string `yaml:"dsn" envconfig:"STORE_DSN"`
	// Retain bounds the reports kept by the memory store; 0 keeps all.
	Retain int `yaml:"retain"`
}

type CacheConfig struct {
	Size   int           `yaml:"size"`
	Expiry time.Duration `yaml:"expiry"`
}

type KafkaConfig struct {
	Topic            string   `yaml:"topic"`
	BootstrapServers []string `yaml:"bootstrap_servers"`
}

type OutputConfig struct {
	Path  string       `yaml:"path" envconfig:"OUTPUT_PATH"`
	Kafka *KafkaConfig `yaml:"kafka" ignored:"true"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"API_ENABLED"`
	Host    string `yaml:"host" envconfig:"API_HOST"`
	Port    uint16 `yaml:"port" envconfig:"API_PORT"`
	// MaxPageSize caps the limit accepted by leaderboard queries.
	MaxPageSize int `yaml:"max_page_size"`
}

type WebsiteConfig struct {
	Enabled           bool   `yaml:"enabled" envconfig:"WEBSITE_ENABLED"`
	Host              string `yaml:"host" envconfig:"WEBSITE_HOST"`
	Port              uint16 `yaml:"port" envconfig:"WEBSITE_PORT"`
	ShowConfigDetails bool   `yaml:"show_config_details"`
	PageSize          int    `yaml:"page_size"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron" envconfig:"SCHEDULE"`
}

type Config struct {
	Network  *NetworkConfig  `yaml:"network"`
	Onionoo  *OnionooConfig  `yaml:"onionoo"`
	GeoIP    *GeoIPConfig    `yaml:"geoip"`
	Analysis *AnalysisConfig `yaml:"analysis"`
	Store    *StoreConfig    `yaml:"store"`
	Cache    *CacheConfig    `yaml:"cache"`
	Output   *OutputConfig   `yaml:"output"`
	API      *APIConfig      `yaml:"api"`
	Website  *WebsiteConfig  `yaml:"website"`
	Log      *LogConfig      `yaml:"log"`
	Schedule *ScheduleConfig `yaml:"schedule"`
}

// DefaultAnalysisConfig returns the product defaults for every analysis knob.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		ReliabilityMinRelays: 25,
		OutlierSigma:         2.0,
		RarityCutoff:         6,
		MatchTolerance:       0.1,
		SPOFShare:            0.05,
		LeaderboardCutoff:    25,
		HHIBands: HHIBands{
			Medium: 0.15,
			High:   0.25,
		},
		Jurisdictions: DefaultJurisdictions(),
		Tables:        DefaultTables(),
	}
}

func Default() *Config {
	return &Config{
		Network: &NetworkConfig{Name: "tor"},
		Onionoo: &OnionooConfig{
			Endpoint:      "https://onionoo.torproject.org",
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    5 * time.Second,
		},
		GeoIP:    &GeoIPConfig{},
		Analysis: DefaultAnalysisConfig(),
		Store:    &StoreConfig{Driver: "memory", Retain: 48},
		Cache: &CacheConfig{
			Size:   20000,
			Expiry: 12 * time.Hour,
		},
		Output: &OutputConfig{},
		API: &APIConfig{
			Enabled:     true,
			Host:        "0.0.0.0",
			Port:        9000,
			MaxPageSize: 500,
		},
		Website: &WebsiteConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			PageSize: 25,
		},
		Log:      &LogConfig{Level: "info", Format: "console"},
		Schedule: &ScheduleConfig{Cron: "@every 1h"},
	}
}

// Parse decodes YAML on top of the defaults. Sections left out of the document
// keep their default values.
func Parse(data []byte) (*Config, error) {
	config := Default()
	err := yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("could not parse config: %v", err)
	}
	config.fillDefaults()
	return config, config.Validate()
}

// Load reads the YAML file at path, then applies a .env file (if present) and
// RELAY_MONITOR_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %v", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	err = config.applyEnv()
	if err != nil {
		return nil, err
	}
	return config, config.Validate()
}

func (c *Config) applyEnv() error {
	sections := []interface{}{c.Onionoo, c.GeoIP, c.Store, c.Output, c.API, c.Website, c.Log, c.Schedule}
	for _, section := range sections {
		err := envconfig.Process(EnvPrefix, section)
		if err != nil {
			return fmt.Errorf("could not apply environment overrides: %v", err)
		}
	}
	return nil
}

func (c *Config) fillDefaults() {
	defaults := Default()
	if c.Network == nil {
		c.Network = defaults.Network
	}
	if c.Onionoo == nil {
		c.Onionoo = defaults.Onionoo
	}
	if c.GeoIP == nil {
		c.GeoIP = defaults.GeoIP
	}
	if c.Analysis == nil {
		c.Analysis = defaults.Analysis
	}
	if c.Analysis.Tables == nil {
		c.Analysis.Tables = DefaultTables()
	}
	if c.Analysis.Jurisdictions == nil {
		c.Analysis.Jurisdictions = DefaultJurisdictions()
	}
	if c.Store == nil {
		c.Store = defaults.Store
	}
	if c.Cache == nil {
		c.Cache = defaults.Cache
	}
	if c.Output == nil {
		c.Output = defaults.Output
	}
	if c.API == nil {
		c.API = defaults.API
	}
	if c.Website == nil {
		c.Website = defaults.Website
	}
	if c.Log == nil {
		c.Log = defaults.Log
	}
	if c.Schedule == nil {
		c.Schedule = defaults.Schedule
	}
}

// Validate rejects knob values that would make the analysis meaningless.
func (c *Config) Validate() error {
	a := c.Analysis
	if a == nil {
		return fmt.Errorf("missing analysis config")
	}
	if a.ReliabilityMinRelays < 0 {
		return fmt.Errorf("reliability_min_relays must not be negative")
	}
	if a.OutlierSigma <= 0 {
		return fmt.Errorf("outlier_sigma must be positive")
	}
	if a.LeaderboardCutoff <= 0 {
		return fmt.Errorf("leaderboard_cutoff must be positive")
	}
	if a.SPOFShare <= 0 || a.SPOFShare > 1 {
		return fmt.Errorf("spof_share must be in (0, 1]")
	}
	if a.HHIBands.Medium <= 0 || a.HHIBands.High <= a.HHIBands.Medium || a.HHIBands.High > 1 {
		return fmt.Errorf("hhi_bands must satisfy 0 < medium < high <= 1")
	}
	switch c.Store.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	return nil
}
