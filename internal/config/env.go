package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by Env.
const EnvPrefix = "SOCIOPREP"

// Env holds process-level settings that do not belong in a pipeline file.
type Env struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
	MetricsBackend string `envconfig:"METRICS_BACKEND" default:"none"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL" default:"http://localhost:9091"`
	DogStatsDAddr  string `envconfig:"DOGSTATSD_ADDR" default:"127.0.0.1:8125"`
	TraceExporter  string `envconfig:"TRACE_EXPORTER" default:"none"`
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	// HTTPRateLimit caps web UI requests per second; 0 disables the limit.
	HTTPRateLimit float64 `envconfig:"HTTP_RATE_LIMIT" default:"50"`
	HTTPBurst     int     `envconfig:"HTTP_BURST" default:"100"`
}

// LoadEnv loads envFile into the process environment when it exists
// (variables already set win) and then decodes Env.
func LoadEnv(envFile string) (Env, bool, error) {
	var env Env
	loaded := false
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return env, false, fmt.Errorf("load %s: %w", envFile, err)
			}
			loaded = true
		}
	}
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return env, loaded, fmt.Errorf("process env: %w", err)
	}
	return env, loaded, nil
}
