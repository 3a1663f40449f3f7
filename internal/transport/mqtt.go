package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultMQTTPort         = 1883
	mqttInboxCapacity       = 256
	mqttSubscribeTimeout    = 10 * time.Second
	mqttDisconnectQuiesceMS = 250
)

// MQTTConfig describes the broker subscription.
type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Topic    string
	ClientID string
}

// MessageHandler processes one inbound broker message.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

type inboundMessage struct {
	topic   string
	payload []byte
}

// MQTTSubscriber subscribes to a topic and feeds messages to a handler one at
// a time from a dedicated worker goroutine, so a slow handler never stalls the
// client's network loop.
type MQTTSubscriber struct {
	logger  *slog.Logger
	cfg     MQTTConfig
	handler MessageHandler
	inbox   chan inboundMessage
	client  mqtt.Client
	done    chan struct{}
}

func NewMQTTSubscriber(logger *slog.Logger, cfg MQTTConfig, handler MessageHandler) *MQTTSubscriber {
	if cfg.Port == 0 {
		cfg.Port = defaultMQTTPort
	}

	return &MQTTSubscriber{
		logger:  logger.With("broker", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), "topic", cfg.Topic),
		cfg:     cfg,
		handler: handler,
		inbox:   make(chan inboundMessage, mqttInboxCapacity),
		done:    make(chan struct{}),
	}
}

// Done is closed once the worker has returned and the handler will not be
// called again, or right away when Start failed.
func (s *MQTTSubscriber) Done() <-chan struct{} {
	return s.done
}

func (s *MQTTSubscriber) Start(ctx context.Context) error {
	if s.cfg.Host == "" {
		close(s.done)
		return errors.New("mqtt host is empty")
	}
	if s.cfg.Topic == "" {
		close(s.done)
		return errors.New("mqtt topic is empty")
	}

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)
	s.client = mqtt.NewClient(opts)

	go func() {
		defer close(s.done)
		s.runWorker(ctx)
	}()

	s.logger.Info("mqtt connecting")
	// With connect retry enabled the token only completes once connected.
	s.client.Connect()

	go func() {
		<-ctx.Done()
		s.client.Disconnect(mqttDisconnectQuiesceMS)
		s.logger.Info("mqtt disconnected")
	}()

	return nil
}

func (s *MQTTSubscriber) onConnect(c mqtt.Client) {
	s.logger.Info("mqtt connected")
	token := c.Subscribe(s.cfg.Topic, 0, s.onMessage)
	if !token.WaitTimeout(mqttSubscribeTimeout) {
		s.logger.Error("mqtt subscribe timed out")

		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", "error", err)

		return
	}
	s.logger.Debug("mqtt subscribed")
}

func (s *MQTTSubscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Warn("mqtt connection lost", "error", err)
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	in := inboundMessage{topic: msg.Topic(), payload: msg.Payload()}
	select {
	case s.inbox <- in:
	default:
		s.logger.Warn("mqtt inbox full, dropping message", "message_topic", in.topic, "len", len(in.payload))
	}
}

func (s *MQTTSubscriber) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.inbox:
			s.handler(ctx, in.topic, in.payload)
		}
	}
}
