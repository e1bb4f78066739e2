package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/medrota/rotaplan/core/events"
	"github.com/medrota/rotaplan/infra/logger"
	"github.com/medrota/rotaplan/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT notifier.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	QoS         byte        `json:"qos"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Notifier publishes scheduling events to an MQTT broker so planning
// tools can react to committed matrices without polling.
type Notifier struct {
	cli        pahoClient
	prefix     string
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// New connects to the MQTT broker described by cfg.
func New(cfg Config) (*Notifier, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("notifier")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "rotaplan"
	}
	n := &Notifier{
		cli:        c,
		prefix:     prefix,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}
	if n.maxRetries <= 0 {
		n.maxRetries = 3
	}
	if n.backoff <= 0 {
		n.backoff = 100 * time.Millisecond
	}
	return n, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "rotaplan-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// AnnounceResolve publishes a resolve outcome.
func (n *Notifier) AnnounceResolve(ev events.ResolveEvent) error {
	return n.publish("resolve", ev)
}

// AnnounceMove publishes a validated move proposal.
func (n *Notifier) AnnounceMove(ev events.MoveEvent) error {
	return n.publish("move", ev)
}

// AnnounceOverride publishes a committed capacity override.
func (n *Notifier) AnnounceOverride(ev events.OverrideEvent) error {
	return n.publish("override", ev)
}

func (n *Notifier) publish(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s", n.prefix, kind)
	var publishErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, n.qos, false, data)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			n.log.Debugf("published %s event to %s", kind, topic)
			return nil
		}
		n.log.Warnf("publish %s attempt %d failed: %v", kind, attempt+1, publishErr)
		time.Sleep(n.backoff)
	}
	return publishErr
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.cli.Disconnect(250)
}

// StartEventNotifier forwards bus events to the notifier until the
// context is canceled. Publish failures are logged and dropped.
func StartEventNotifier(ctx context.Context, n *Notifier,
	resolves *eventbus.Bus[events.ResolveEvent],
	overrides *eventbus.Bus[events.OverrideEvent]) {
	if n == nil {
		return
	}
	var (
		rch <-chan events.ResolveEvent
		och <-chan events.OverrideEvent
		cs  []func()
	)
	if resolves != nil {
		ch, cancel := resolves.Subscribe(16)
		rch, cs = ch, append(cs, cancel)
	}
	if overrides != nil {
		ch, cancel := overrides.Subscribe(16)
		och, cs = ch, append(cs, cancel)
	}
	go func() {
		defer func() {
			for _, c := range cs {
				c()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-rch:
				if !ok {
					return
				}
				if err := n.AnnounceResolve(ev); err != nil {
					n.log.Errorf("announce resolve: %v", err)
				}
			case ev, ok := <-och:
				if !ok {
					return
				}
				if err := n.AnnounceOverride(ev); err != nil {
					n.log.Errorf("announce override: %v", err)
				}
			}
		}
	}()
}
