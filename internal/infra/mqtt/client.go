// Package mqtt publishes player state updates to an MQTT broker.
package mqtt

import (
	"crypto/tls"
	"time"

	"github.com/cockroachdb/errors"
	paho "github.com/eclipse/paho.mqtt.golang"
	zlog "github.com/rs/zerolog/log"
)

// Config configures the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

// Client wraps a paho connection.
type Client struct {
	client  paho.Client
	timeout time.Duration
}

// Connect dials the broker and waits for the connection to be acknowledged.
func Connect(cfg Config) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		zlog.Warn().Err(err).Msgf("mqtt: connection lost: broker=%s", cfg.Broker)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		zlog.Info().Msgf("mqtt: connected: broker=%s", cfg.Broker)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, errors.Newf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to mqtt broker %s", cfg.Broker)
	}
	return &Client{client: client, timeout: cfg.Timeout}, nil
}

// Publish publishes one message and waits for the broker acknowledgement.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return errors.Newf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
