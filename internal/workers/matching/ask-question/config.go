// internal/workers/matching/ask-question/config.go
package askquestion

import "time"

type Config struct {
	Timeout     time.Duration
	MaxQuestion int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxQuestion: 2000,
	}
}
