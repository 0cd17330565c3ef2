package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/roadwatch/console/internal/domain"
)

// MQTTConfig holds broker settings for the device feed
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// MQTTLocator follows a device position feed published on an MQTT topic and
// answers position requests from it.
type MQTTLocator struct {
	cfg    MQTTConfig
	client mqtt.Client
	now    func() time.Time

	mu      sync.Mutex
	latest  *Position
	updated chan struct{}
	connErr error
}

// NewMQTTLocator creates a locator. Call Connect to start following the feed.
func NewMQTTLocator(cfg MQTTConfig) *MQTTLocator {
	return &MQTTLocator{
		cfg:     cfg,
		now:     time.Now,
		updated: make(chan struct{}),
	}
}

// Connect connects to the broker and subscribes to the position topic
func (l *MQTTLocator) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.cfg.Broker)
	opts.SetClientID(l.cfg.ClientID)
	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
		opts.SetPassword(l.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		l.handleMessage(msg.Topic(), msg.Payload())
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		l.setConnErr(token.Error())
		return fmt.Errorf("locator: failed to connect to %s: %w", l.cfg.Broker, token.Error())
	}
	if token := client.Subscribe(l.cfg.Topic, 0, nil); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		l.setConnErr(token.Error())
		return fmt.Errorf("locator: failed to subscribe to %s: %w", l.cfg.Topic, token.Error())
	}

	l.mu.Lock()
	l.client = client
	l.connErr = nil
	l.mu.Unlock()
	log.Printf("[locator] subscribed to MQTT topic: %s", l.cfg.Topic)
	return nil
}

// Close disconnects from the broker
func (l *MQTTLocator) Close() {
	l.mu.Lock()
	client := l.client
	l.client = nil
	l.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
	}
}

// Latest returns the last fix received, if any
func (l *MQTTLocator) Latest() (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return Position{}, false
	}
	return *l.latest, true
}

// CurrentPosition returns a fix no older than opts.MaximumAge, waiting up
// to opts.Timeout for the next one when the cached fix is too old.
func (l *MQTTLocator) CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error) {
	l.mu.Lock()
	if l.connErr != nil {
		err := classifyConnectError(l.connErr)
		l.mu.Unlock()
		return Position{}, err
	}
	if l.client != nil && !l.client.IsConnectionOpen() {
		l.mu.Unlock()
		return Position{}, &PositionError{Code: PositionUnavailable, Message: "device feed disconnected"}
	}
	requested := l.now()
	if opts.MaximumAge > 0 && l.latest != nil && requested.Sub(l.latest.Timestamp) <= opts.MaximumAge {
		p := *l.latest
		l.mu.Unlock()
		return p, nil
	}
	wait := l.updated
	l.mu.Unlock()

	var expired <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-wait:
			l.mu.Lock()
			if l.latest != nil && !l.latest.Timestamp.Before(requested) {
				p := *l.latest
				l.mu.Unlock()
				return p, nil
			}
			wait = l.updated
			l.mu.Unlock()
		case <-expired:
			return Position{}, &PositionError{Code: Timeout, Message: fmt.Sprintf("no fix within %s", opts.Timeout)}
		case <-ctx.Done():
			return Position{}, ctx.Err()
		}
	}
}

type locationPayload struct {
	LocationSolved struct {
		Location struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Accuracy  float64 `json:"accuracy"`
		} `json:"location"`
	} `json:"location_solved"`
}

func (l *MQTTLocator) handleMessage(topic string, payload []byte) {
	var msg locationPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[locator] error unmarshalling payload from %s: %v", topic, err)
		return
	}
	loc := msg.LocationSolved.Location
	if !domain.ValidLatLon(loc.Latitude, loc.Longitude) || (loc.Latitude == 0 && loc.Longitude == 0) {
		log.Printf("[locator] ignoring fix (%f, %f) from %s", loc.Latitude, loc.Longitude, topic)
		return
	}

	p := Position{
		DeviceID:  deviceID(topic),
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
		Timestamp: l.now(),
	}

	l.mu.Lock()
	l.latest = &p
	close(l.updated)
	l.updated = make(chan struct{})
	l.mu.Unlock()
}

func (l *MQTTLocator) setConnErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connErr = err
}

// deviceID extracts the segment after "devices" in the topic
func deviceID(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" {
			return parts[i+1]
		}
	}
	return ""
}

func classifyConnectError(err error) *PositionError {
	if errors.Is(err, packets.ErrorRefusedNotAuthorised) || errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
		return &PositionError{Code: PermissionDenied, Message: err.Error()}
	}
	return &PositionError{Code: PositionUnavailable, Message: err.Error()}
}
