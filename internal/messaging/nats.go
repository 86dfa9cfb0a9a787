// Package messaging provides a NATS client wrapper for the moderation
// service. It handles connection lifecycle, queue-group request handlers for
// listing and message checks, and flag event publishing.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATS subjects used by the moderation service and its callers.
const (
	SubjectListingCheck = "moderation.listing.check"
	SubjectMessageCheck = "moderation.message.check"
	SubjectFlagged      = "moderation.flagged" // + .<category>
)

// Responder handles a request payload and returns the reply payload.
type Responder func(ctx context.Context, data []byte) []byte

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn   *nats.Conn
	logger zerolog.Logger

	closed       chan struct{} // closed by the connection's ClosedHandler
	drainTimeout time.Duration
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL            string        // nats://localhost:4222
	Name           string        // client name for identification
	ReconnectWait  time.Duration // time between reconnect attempts
	MaxReconnects  int           // max reconnect attempts (-1 for infinite)
	HandlerTimeout time.Duration // deadline for a single request handler
	DrainTimeout   time.Duration // how long Close waits for in-flight handlers
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "pocket-moderator",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		HandlerTimeout: 2 * time.Second,
		DrainTimeout:   10 * time.Second,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig, logger zerolog.Logger) (*NATSClient, error) {
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultNATSConfig().DrainTimeout
	}
	closed := make(chan struct{})
	var closeOnce sync.Once

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
			closeOnce.Do(func() { close(closed) })
		}),
		nats.DrainTimeout(config.DrainTimeout),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats connected")

	return &NATSClient{
		conn:         nc,
		logger:       logger,
		closed:       closed,
		drainTimeout: config.DrainTimeout,
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishFlagged publishes a flag event on moderation.flagged.<category>.
func (c *NATSClient) PublishFlagged(category string, data []byte) error {
	return c.Publish(SubjectFlagged+"."+category, data)
}

// Request sends data to subject and waits for a single reply or ctx expiry.
func (c *NATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// RequestListingCheck asks a moderator instance to check a listing.
func (c *NATSClient) RequestListingCheck(ctx context.Context, data []byte) ([]byte, error) {
	return c.Request(ctx, SubjectListingCheck, data)
}

// RequestMessageCheck asks a moderator instance to check a chat message.
func (c *NATSClient) RequestMessageCheck(ctx context.Context, data []byte) ([]byte, error) {
	return c.Request(ctx, SubjectMessageCheck, data)
}

// Serve registers respond as a queue-group handler for subject. Every
// moderator instance joins the same queue so each request is handled once.
// Each call gets a context bounded by timeout.
func (c *NATSClient) Serve(subject, queue string, timeout time.Duration, respond Responder) error {
	_, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		reply := respond(ctx, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Error().Err(err).Str("subject", subject).Msg("nats respond failed")
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	return nil
}

// Connected reports whether the underlying connection is currently up.
func (c *NATSClient) Connected() bool {
	return c.conn.IsConnected()
}

// Close drains all active subscriptions and closes the NATS connection. It
// blocks until handlers that were already running have replied, or until the
// drain timeout passes.
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn().Err(err).Msg("nats connection drain failed")
		c.conn.Close()
	}

	select {
	case <-c.closed:
	case <-time.After(c.drainTimeout + time.Second):
		c.logger.Warn().Dur("timeout", c.drainTimeout).Msg("nats drain did not finish, closing")
		c.conn.Close()
	}

	c.logger.Info().Msg("nats client closed")
}
