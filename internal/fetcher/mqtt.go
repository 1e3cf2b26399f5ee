package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/geolock/internal/models"
)

const (
	// DefaultMQTTTopic is the topic the simulator publishes to.
	DefaultMQTTTopic = "geolock/location"

	sourceMQTT = "mqtt"
)

// MQTTConfig configures an MQTTFetcher.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// MQTTFetcher subscribes to a topic and serves the latest payload it received.
type MQTTFetcher struct {
	cfg    MQTTConfig
	client mqtt.Client

	latest atomic.Pointer[models.Message]
	seq    atomic.Uint64
}

// NewMQTTFetcher creates a fetcher bound to the given client. Call Start to subscribe.
func NewMQTTFetcher(client mqtt.Client, cfg MQTTConfig) *MQTTFetcher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultMQTTTopic
	}
	return &MQTTFetcher{cfg: cfg, client: client}
}

// ConnectMQTT dials the broker described by cfg.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

// Start subscribes to the configured topic.
func (f *MQTTFetcher) Start() error {
	token := f.client.Subscribe(f.cfg.Topic, f.cfg.QoS, f.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return &FetchError{Source: sourceMQTT, Err: fmt.Errorf("subscribe %s: %w", f.cfg.Topic, err)}
	}
	log.WithField("topic", f.cfg.Topic).Info("Subscribed to location topic")
	return nil
}

// Stop unsubscribes and disconnects the client.
func (f *MQTTFetcher) Stop() {
	if f.client == nil {
		return
	}
	if token := f.client.Unsubscribe(f.cfg.Topic); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Warn("Failed to unsubscribe from location topic")
	}
	f.client.Disconnect(250)
}

func (f *MQTTFetcher) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	m := models.Message{
		ID:        strconv.FormatUint(f.seq.Add(1), 10),
		Content:   string(msg.Payload()),
		Timestamp: time.Now().UTC(),
	}
	f.latest.Store(&m)
}

// Fetch implements Fetcher. It never blocks on the network.
func (f *MQTTFetcher) Fetch(ctx context.Context) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: sourceMQTT, Err: err}
	}
	if f.client != nil && !f.client.IsConnectionOpen() {
		return nil, &FetchError{Source: sourceMQTT, Err: fmt.Errorf("broker connection lost")}
	}
	m := f.latest.Load()
	if m == nil {
		return nil, nil
	}
	return []models.Message{*m}, nil
}
