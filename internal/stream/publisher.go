package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/cosanlab/medoc"
)

// sessionExpirySeconds keeps queued messages alive across short broker
// reconnects without hoarding state on the broker forever.
const sessionExpirySeconds = 60

// Watcher is the subset of the device client the publisher needs.
//
// *medoc.Pathway satisfies it; tests substitute a fake.
type Watcher interface {
	Status(ctx context.Context) (*medoc.Response, error)
}

// Config describes the broker connection and publishing cadence.
type Config struct {
	// BrokerURL is the MQTT broker, e.g. "mqtt://localhost:1883".
	BrokerURL string

	// Topic to publish observations on.
	Topic string

	// ClientID identifies this publisher to the broker. Must be unique
	// per broker when QoS > 0.
	ClientID string

	// Username and Password authenticate against the broker. Empty means
	// anonymous.
	Username string
	Password string

	// Interval between device status queries.
	Interval time.Duration

	// QoS for published observations (0, 1, or 2).
	QoS byte

	// KeepAlive is the MQTT keep-alive in seconds.
	KeepAlive uint16
}

// Observation is the JSON payload published for each status query.
//
// When the device could not be reached, Error is set and the state fields
// are empty; subscribers see gaps rather than stale values.
type Observation struct {
	PathwayState string    `json:"pathway_state,omitempty"`
	TestState    string    `json:"test_state,omitempty"`
	Result       string    `json:"result,omitempty"`
	TestTime     string    `json:"test_time,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
	Error        string    `json:"error,omitempty"`
}

// Publisher periodically queries a Pathway device and publishes each
// observation to an MQTT topic. Messages are published retained, so late
// subscribers immediately see the last known state.
type Publisher struct {
	cfg    Config
	dev    Watcher
	logger *slog.Logger
	server *url.URL
}

// NewPublisher validates the config and creates a publisher.
//
// No connection is made until [Publisher.Run] is called.
func NewPublisher(cfg Config, dev Watcher, logger *slog.Logger) (*Publisher, error) {
	if dev == nil {
		return nil, errors.New("device watcher must not be nil")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic must not be empty")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client id must not be empty")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("qos must be 0, 1, or 2, got %d", cfg.QoS)
	}
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker url %q: %w", cfg.BrokerURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("broker url %q must include scheme and host", cfg.BrokerURL)
	}

	return &Publisher{cfg: cfg, dev: dev, logger: logger, server: u}, nil
}

// Run connects to the broker and publishes observations until the context
// is cancelled. The connection manager reconnects on its own; a broker
// outage delays messages rather than killing the stream.
func (p *Publisher) Run(ctx context.Context) error {
	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{p.server},
		KeepAlive:                     p.cfg.KeepAlive,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         sessionExpirySeconds,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			p.logger.Info("mqtt connection up", "broker", p.server.String())
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
			OnClientError: func(err error) {
				p.logger.Warn("mqtt client error", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				p.logger.Warn("mqtt server disconnect", "reason_code", d.ReasonCode)
			},
		},
	}
	if p.cfg.Username != "" {
		cliCfg.ConnectUsername = p.cfg.Username
		cliCfg.ConnectPassword = []byte(p.cfg.Password)
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return fmt.Errorf("failed to create mqtt connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	p.logger.Info("state stream started",
		"topic", p.cfg.Topic,
		"interval", p.cfg.Interval,
	)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.publishOnce(ctx, cm); err != nil && ctx.Err() == nil {
				p.logger.Warn("failed to publish observation", "error", err)
			}
		case <-ctx.Done():
			// let the connection manager send DISCONNECT cleanly
			<-cm.Done()
			return nil
		}
	}
}

// publishOnce queries the device and publishes a single observation.
func (p *Publisher) publishOnce(ctx context.Context, cm *autopaho.ConnectionManager) error {
	obs := p.observe(ctx)

	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to encode observation: %w", err)
	}

	_, err = cm.Publish(ctx, &paho.Publish{
		QoS:     p.cfg.QoS,
		Topic:   p.cfg.Topic,
		Payload: payload,
		Retain:  true,
	})
	return err
}

// observe turns one status query into an Observation. Device failures are
// data, not errors: the observation carries the failure text.
func (p *Publisher) observe(ctx context.Context) Observation {
	obs := Observation{ObservedAt: time.Now().UTC()}

	resp, err := p.dev.Status(ctx)
	if err != nil {
		obs.Error = err.Error()
		return obs
	}

	obs.PathwayState = resp.SystemState.String()
	obs.TestState = resp.TestState.String()
	obs.Result = resp.Result.String()
	obs.TestTime = resp.TestTimeString()
	return obs
}
