package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// publishTimeout bounds how long a publish waits for the broker.
const publishTimeout = 5 * time.Second

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("publish timeout")

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   paho.Client
	prefix   string
	logger   *zap.Logger
	connects atomic.Int32
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until it succeeds; use Ready
// to find out whether writes can go through.
func NewRealPublisher(opts Options, logger *zap.Logger) (*RealPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := url.Parse(opts.Broker); err != nil || opts.Broker == "" {
		return nil, fmt.Errorf("invalid broker %q", opts.Broker)
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "fret-sensor-" + uuid.NewString()[:8]
	}

	p := &RealPublisher{prefix: opts.TopicPrefix, logger: logger}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(popts)
	p.client.Connect()
	logger.Info("mqtt connecting", zap.String("broker", opts.Broker), zap.String("client_id", clientID))
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	n := p.connects.Add(1)
	p.logger.Info("mqtt connected", zap.Int32("connects", n))
	if n == 1 {
		return
	}
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
	if err != nil {
		return
	}
	// Runs on paho's goroutine; do not wait for the token here.
	c.Publish(TopicSystem, 1, false, payload)
}

// PutBool publishes the state retained at QoS 1 so the broker holds the
// latest value for each path.
func (p *RealPublisher) PutBool(ctx context.Context, path string, value bool) error {
	topic := Topic(p.prefix, path)
	token := p.client.Publish(topic, 1, true, FormatValue(value))
	return waitToken(ctx, token, topic)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	token := p.client.Publish(TopicSystem, 1, event.Retained, payload)
	return waitToken(context.Background(), token, TopicSystem)
}

func waitToken(ctx context.Context, token paho.Token, topic string) error {
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("publish %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Ready reports whether the connection to the broker is open.
func (p *RealPublisher) Ready() bool {
	return p.client.IsConnectionOpen()
}

// IsConnected reports whether the connection to the broker is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
