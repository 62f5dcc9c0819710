// internal/workers/matching/search-listings/config.go
package searchlistings

import "time"

type Config struct {
	Timeout time.Duration
	// MaxResults bounds the listings returned in job variables.
	MaxResults int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    5 * time.Second,
		MaxResults: 200,
	}
}
