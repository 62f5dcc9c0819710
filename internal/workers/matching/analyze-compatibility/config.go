// internal/workers/matching/analyze-compatibility/config.go
package analyzecompatibility

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 45 * time.Second,
	}
}
