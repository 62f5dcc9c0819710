// internal/workers/matching/rank-candidates/config.go
package rankcandidates

import (
	"time"

	"circ-exchange/internal/matching"
)

type Config struct {
	Timeout time.Duration
	Options matching.Options
	// MaxTopK caps per-job topK overrides.
	MaxTopK int
	// EventTopN is how many candidates the ranked event carries.
	EventTopN int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   10 * time.Second,
		Options:   matching.DefaultOptions(),
		MaxTopK:   100,
		EventTopN: 5,
	}
}
