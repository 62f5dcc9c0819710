// Package messaging publishes exchange events on NATS or SNS.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"

	"github.com/nats-io/nats.go"
)

// Subjects published by the workers.
const (
	SubjectMatchesRanked = "exchange.matches.ranked"
	SubjectAnalysisReady = "exchange.analysis.completed"
)

// Publisher is what the workers depend on.
type Publisher interface {
	PublishJSON(subject string, v interface{}) error
}

type NATSConfig struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "circ-exchange",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSClient wraps a NATS connection.
type NATSClient struct {
	conn   *nats.Conn
	logger logger.Logger
}

func NewNATSClient(cfg NATSConfig, log logger.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", map[string]interface{}{"error": err})
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed", nil)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("connected to nats", map[string]interface{}{"url": nc.ConnectedUrl()})

	return &NATSClient{conn: nc, logger: log}, nil
}

func (c *NATSClient) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return apperrors.NewEventPublishFailedError(subject, err)
	}
	return nil
}

func (c *NATSClient) PublishJSON(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewEventPublishFailedError(subject, err)
	}
	return c.Publish(subject, data)
}

// Close drains pending messages before closing.
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", map[string]interface{}{"error": err})
	}
}

// NoopPublisher discards events. Used when messaging is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishJSON(string, interface{}) error { return nil }
