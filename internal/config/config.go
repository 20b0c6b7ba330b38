package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	WebRTC  WebRTCConfig  `yaml:"webrtc"`
	Storage StorageConfig `yaml:"storage"`
	Broker  BrokerConfig  `yaml:"broker"`
	Room    RoomConfig    `yaml:"room"`
}

type HTTPConfig struct {
	Address      string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	PublicURL    string   `yaml:"public_url" env:"HTTP_PUBLIC_URL" env-default:""`
	AllowOrigins []string `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS" env-separator:","`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env:"WEBRTC_STUN_SERVERS" env-separator:","`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN    string `yaml:"dsn" env:"STORAGE_DSN"`
}

type BrokerConfig struct {
	Driver    string `yaml:"driver" env:"BROKER_DRIVER" env-default:"memory"`
	RedisAddr string `yaml:"redis_addr" env:"BROKER_REDIS_ADDR"`
	Buffer    int    `yaml:"buffer" env:"BROKER_BUFFER" env-default:"64"`
}

type RoomConfig struct {
	Lifetime      time.Duration `yaml:"lifetime" env:"ROOM_LIFETIME" env-default:"0s"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"ROOM_SWEEP_INTERVAL" env-default:"1m"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// LoadPath reads the YAML file at configPath and applies environment overrides.
func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &Error{Path: configPath, Err: ErrNotExist}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, &Error{Path: configPath, Err: err}
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: configPath, Err: err}
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.PublicURL == "" {
		c.HTTP.PublicURL = "http://localhost:3000/"
	}
	if len(c.HTTP.AllowOrigins) == 0 {
		c.HTTP.AllowOrigins = []string{"http://localhost:3000"}
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Broker.Driver == "" {
		c.Broker.Driver = BrokerMemory
	}
	if c.Broker.Buffer <= 0 {
		c.Broker.Buffer = 64
	}
	if c.Room.SweepInterval <= 0 {
		c.Room.SweepInterval = time.Minute
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return ErrEmptyDSN
		}
	default:
		return &UnknownDriverError{Section: "storage", Driver: c.Storage.Driver}
	}

	switch c.Broker.Driver {
	case BrokerMemory:
	case BrokerRedis:
		if c.Broker.RedisAddr == "" {
			return ErrEmptyRedisAddr
		}
	default:
		return &UnknownDriverError{Section: "broker", Driver: c.Broker.Driver}
	}

	return nil
}
