package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	cb "github.com/Astemirdum/library-catalog/pkg/circuit_breaker"

	"github.com/Astemirdum/library-catalog/library/internal/storage"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"5000"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration
}

type Config struct {
	Server         HTTPServer  `yaml:"server"`
	Database       postgres.DB `yaml:"db"`
	Log            logger.Log  `yaml:"log"`
	Kafka          kafka.Config
	Auth           auth.Config
	CircuitBreaker cb.Config
	Storage        storage.Config

	// GaugeSchedule is the cron spec the catalog gauges are refreshed on.
	GaugeSchedule string `envconfig:"GAUGE_SCHEDULE" default:"@every 1m"`
	// Production marks session cookies Secure.
	Production bool `envconfig:"PRODUCTION"`
	// CORSOrigins are the frontends allowed to send the session cookie.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment. Options are applied on top of it.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		for _, op := range ops {
			op(&config)
		}
		if config.Server.WriteTimeout == 0 {
			config.Server.WriteTimeout = time.Minute
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
