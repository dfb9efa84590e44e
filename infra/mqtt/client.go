// Package mqtt carries dispatch requests in and assignment decisions out
// over an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	RequestTopic  string          `json:"request_topic"`
	DecisionTopic string          `json:"decision_topic"`
	FailureTopic  string          `json:"failure_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	AuthMethod    string          `json:"auth_method"`
	QoS           map[string]byte `json:"qos"`
	LWTTopic      string          `json:"lwt_topic"`
	LWTPayload    string          `json:"lwt_payload"`
	LWTQoS        byte            `json:"lwt_qos"`
	LWTRetain     bool            `json:"lwt_retain"`
	MaxRetries    int             `json:"max_retries"`
	BackoffMS     int             `json:"backoff_ms"`
	// HandleTimeoutSeconds bounds the processing of one inbound request.
	HandleTimeoutSeconds int         `json:"handle_timeout_seconds"`
	TLSConfig            *tls.Config `json:"-"`
}

// SetDefaults applies the production defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "dispatchd"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "dispatch/requests"
	}
	if c.DecisionTopic == "" {
		c.DecisionTopic = "dispatch/decisions"
	}
	if c.FailureTopic == "" {
		c.FailureTopic = "dispatch/failures"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.HandleTimeoutSeconds <= 0 {
		c.HandleTimeoutSeconds = 30
	}
}

// Handler processes one inbound dispatch request. The dispatch manager
// satisfies this.
type Handler interface {
	Handle(ctx context.Context, req model.DispatchRequest) (model.AssignmentDecision, error)
}

// pahoClient is the slice of the Paho API the client needs; tests inject a
// fake through newMQTTClient.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Client subscribes to the request topic and publishes decisions.
type Client struct {
	cli           pahoClient
	cfg           Config
	handler       Handler
	log           logger.Logger
	handleTimeout time.Duration
	backoff       time.Duration
}

// NewClient connects to the broker and subscribes to the request topic.
func NewClient(cfg Config, handler Handler) (*Client, error) {
	cfg.SetDefaults()
	if handler == nil {
		return nil, fmt.Errorf("mqtt: nil handler")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	c := &Client{
		cfg:           cfg,
		handler:       handler,
		log:           log,
		handleTimeout: time.Duration(cfg.HandleTimeoutSeconds) * time.Second,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(pc paho.Client) {
		log.Infof("MQTT connected")
		if token := pc.Subscribe(cfg.RequestTopic, c.qosFor("request"), c.onRequest); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	c.cli = cli
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
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

func (c *Client) qosFor(key string) byte {
	if q, ok := c.cfg.QoS[key]; ok {
		return q
	}
	return 0
}

// onRequest decodes one inbound request and hands it to the pipeline. Each
// message is processed on its own goroutine so a slow decision does not stall
// the Paho receive loop.
func (c *Client) onRequest(_ paho.Client, msg paho.Message) {
	var req model.DispatchRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		c.log.Errorf("failed to decode dispatch request: %v", err)
		return
	}
	go c.handle(req)
}

func (c *Client) handle(req model.DispatchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handleTimeout)
	defer cancel()

	dec, err := c.handler.Handle(ctx, req)
	if err != nil {
		c.log.Warnf("dispatch %s failed: %v", req.ID, err)
		c.publishFailure(req.ID, err)
		return
	}
	if err := c.PublishDecision(dec); err != nil {
		c.log.Errorf("failed to publish decision for %s: %v", req.ID, err)
	}
}

// PublishDecision publishes an assignment decision, retrying with exponential
// backoff.
func (c *Client) PublishDecision(dec model.AssignmentDecision) error {
	payload, err := json.Marshal(dec)
	if err != nil {
		return err
	}
	return c.publish(c.cfg.DecisionTopic, c.qosFor("decision"), payload)
}

func (c *Client) publishFailure(dispatchID string, cause error) {
	payload, err := json.Marshal(struct {
		DispatchID string `json:"dispatch_id"`
		Error      string `json:"error"`
		Timestamp  int64  `json:"timestamp"`
	}{dispatchID, cause.Error(), time.Now().UnixMilli()})
	if err != nil {
		return
	}
	if err := c.publish(c.cfg.FailureTopic, c.qosFor("failure"), payload); err != nil {
		c.log.Errorf("failed to publish failure for %s: %v", dispatchID, err)
	}
}

func (c *Client) publish(topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		token := c.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		c.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(c.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}
