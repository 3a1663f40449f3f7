package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func transportTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (m fakeMQTTMessage) Duplicate() bool   { return false }
func (m fakeMQTTMessage) Qos() byte         { return 0 }
func (m fakeMQTTMessage) Retained() bool    { return false }
func (m fakeMQTTMessage) Topic() string     { return m.topic }
func (m fakeMQTTMessage) MessageID() uint16 { return 0 }
func (m fakeMQTTMessage) Payload() []byte   { return m.payload }
func (m fakeMQTTMessage) Ack()              {}

func TestMQTTSubscriberStart_RequiresHostAndTopic(t *testing.T) {
	handler := func(context.Context, string, []byte) {}
	tests := []struct {
		name string
		cfg  MQTTConfig
	}{
		{name: "missing host", cfg: MQTTConfig{Topic: "msh/#"}},
		{name: "missing topic", cfg: MQTTConfig{Host: "localhost"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewMQTTSubscriber(transportTestLogger(), tc.cfg, handler)
			if err := s.Start(context.Background()); err == nil {
				t.Fatalf("expected start to fail")
			}
			select {
			case <-s.Done():
			default:
				t.Fatalf("expected done to be closed after failed start")
			}
		})
	}
}

func TestMQTTSubscriber_DeliversMessagesInOrder(t *testing.T) {
	got := make(chan string, 3)
	s := NewMQTTSubscriber(transportTestLogger(), MQTTConfig{Host: "localhost", Topic: "msh/#"}, func(_ context.Context, topic string, payload []byte) {
		got <- topic + "=" + string(payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runWorker(ctx)

	s.onMessage(nil, fakeMQTTMessage{topic: "msh/a", payload: []byte("1")})
	s.onMessage(nil, fakeMQTTMessage{topic: "msh/b", payload: []byte("2")})
	s.onMessage(nil, fakeMQTTMessage{topic: "msh/c", payload: []byte("3")})

	for _, want := range []string{"msh/a=1", "msh/b=2", "msh/c=3"} {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("unexpected delivery: got %q want %q", v, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestMQTTSubscriber_DropsWhenInboxFull(t *testing.T) {
	s := NewMQTTSubscriber(transportTestLogger(), MQTTConfig{Host: "localhost", Topic: "msh/#"}, func(context.Context, string, []byte) {})
	for i := 0; i < mqttInboxCapacity+10; i++ {
		s.onMessage(nil, fakeMQTTMessage{topic: "msh/x", payload: []byte{byte(i)}})
	}
	if len(s.inbox) != mqttInboxCapacity {
		t.Fatalf("unexpected inbox length: got %d want %d", len(s.inbox), mqttInboxCapacity)
	}
}

func TestMQTTSubscriber_DoneWaitsForHandler(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := NewMQTTSubscriber(transportTestLogger(), MQTTConfig{Host: "127.0.0.1", Port: 1, Topic: "msh/#"}, func(context.Context, string, []byte) {
		close(entered)
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.onMessage(nil, fakeMQTTMessage{topic: "msh/a", payload: []byte("1")})
	<-entered
	cancel()

	select {
	case <-s.Done():
		t.Fatalf("done closed while handler still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for subscriber to stop")
	}
}
