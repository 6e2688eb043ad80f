// Package mqtt bridges the scheduling service to the battery system
// over an MQTT broker: telemetry flows in, mode commands flow out.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/homebatt/homebatt/core/battery"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker         string          `json:"broker"`
	ClientID       string          `json:"client_id"`
	Username       string          `json:"username"`
	Password       string          `json:"password"`
	TelemetryTopic string          `json:"telemetry_topic"`
	CommandTopic   string          `json:"command_topic"`
	AckTopic       string          `json:"ack_topic"`
	UseTLS         bool            `json:"use_tls"`
	ClientCert     string          `json:"client_cert"`
	ClientKey      string          `json:"client_key"`
	CABundle       string          `json:"ca_bundle"`
	QoS            map[string]byte `json:"qos"`
	MaxRetries     int             `json:"max_retries"`
	BackoffMS      int             `json:"backoff_ms"`
	TLSConfig      *tls.Config     `json:"-"`
}

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

// Bridge implements battery.Commander over Paho and feeds telemetry
// snapshots to a handler.
type Bridge struct {
	cli          pahoClient
	telemetry    string
	commandTopic string
	ackTopic     string
	qos          map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	handler    battery.StateHandler
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewBridge connects to the broker and subscribes to the telemetry and
// ack topics. The handler may be nil when telemetry is not consumed.
func NewBridge(cfg Config, handler battery.StateHandler) (*Bridge, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_bridge")
	b := &Bridge{
		telemetry:    cfg.TelemetryTopic,
		commandTopic: cfg.CommandTopic,
		ackTopic:     cfg.AckTopic,
		qos:          cfg.QoS,
		ackChans:     make(map[string]chan struct{}),
		handler:      handler,
		logger:       log,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if b.telemetry != "" && b.handler != nil {
			if token := c.Subscribe(b.telemetry, b.qosFor("telemetry"), b.onTelemetry); token.Wait() && token.Error() != nil {
				log.Errorf("telemetry subscribe error: %v", token.Error())
			}
		}
		if b.ackTopic != "" {
			if token := c.Subscribe(b.ackTopic, b.qosFor("ack"), b.onAck); token.Wait() && token.Error() != nil {
				log.Errorf("ack subscribe error: %v", token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	b.cli = c
	return b, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
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

func (b *Bridge) qosFor(kind string) byte {
	if q, ok := b.qos[kind]; ok {
		return q
	}
	return 0
}

// telemetryPayload is the wire format of battery system snapshots.
type telemetryPayload struct {
	SoCPercent float64 `json:"soc"`
	GridW      float64 `json:"grid_w"`
	SolarW     float64 `json:"solar_w"`
	BatteryW   float64 `json:"battery_w"`
	Timestamp  int64   `json:"timestamp"`
}

func (b *Bridge) onTelemetry(_ paho.Client, msg paho.Message) {
	var p telemetryPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		b.logger.Errorf("failed to decode telemetry: %v", err)
		return
	}
	ts := time.Now()
	if p.Timestamp > 0 {
		ts = time.UnixMilli(p.Timestamp)
	}
	b.handler(model.BatteryState{
		SoCPercent: p.SoCPercent,
		GridW:      p.GridW,
		SolarW:     p.SolarW,
		BatteryW:   p.BatteryW,
		Time:       ts,
	})
}

func (b *Bridge) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string `json:"command_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	b.mu.Lock()
	if ch, ok := b.ackChans[m.CommandID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		b.logger.Infof("received ack %s", m.CommandID)
	}
	b.mu.Unlock()
}

// SetMode publishes a mode command for the current slot and returns the
// command identifier used for acknowledgment tracking.
func (b *Bridge) SetMode(mode model.BatteryMode, energyKWh float64) (string, error) {
	cmdID := uuid.NewString()
	cmd := struct {
		CommandID string  `json:"command_id"`
		Mode      string  `json:"mode"`
		EnergyKWh float64 `json:"energy_kwh"`
		Timestamp int64   `json:"timestamp"`
	}{
		CommandID: cmdID,
		Mode:      mode.String(),
		EnergyKWh: energyKWh,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}

	qos := b.qosFor("command")
	if b.maxRetries <= 0 {
		b.maxRetries = 3
	}
	if b.backoff <= 0 {
		b.backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		token := b.cli.Publish(b.commandTopic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			b.logger.Infof("sent %s command %s", mode, cmdID)
			break
		}
		b.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(b.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		return "", publishErr
	}

	b.mu.Lock()
	b.ackChans[cmdID] = make(chan struct{}, 1)
	b.mu.Unlock()

	return cmdID, nil
}

// WaitForAck blocks until an ACK for the given command ID arrives or the
// timeout elapses.
func (b *Bridge) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	b.mu.Lock()
	ch := b.ackChans[commandID]
	b.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown command")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		b.mu.Lock()
		delete(b.ackChans, commandID)
		b.mu.Unlock()
		return true, nil
	case <-timer.C:
		b.mu.Lock()
		delete(b.ackChans, commandID)
		b.mu.Unlock()
		return false, fmt.Errorf("%w", battery.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (b *Bridge) Disconnect() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}
