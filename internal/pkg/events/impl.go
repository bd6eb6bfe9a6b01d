package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/valkey-io/valkey-go"

	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// Publisher forwards an encoded event to whoever listens outside the process.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type EventService struct {
	EventSource <-chan Event

	Publisher Publisher

	done chan struct{}
}

func NewEventService(i do.Injector) (*EventService, error) {
	eventSource := do.MustInvokeNamed[<-chan Event](i, "event-source")
	valkeyAddress := do.MustInvokeNamed[string](i, "valkey-address")
	valkeyChannel := do.MustInvokeNamed[string](i, "valkey-channel")

	result := &EventService{
		EventSource: eventSource,
		done:        make(chan struct{}),
	}

	if valkeyAddress != "" {
		publisher, err := NewValkeyPublisher(valkeyAddress, valkeyChannel)
		if err != nil {
			return nil, err
		}

		result.Publisher = publisher
	}

	return result, nil
}

func (s *EventService) Start() {
	if s.done == nil {
		s.done = make(chan struct{})
	}

	go s.processEvents()
}

// Wait blocks until the event source has been closed and drained.
func (s *EventService) Wait() {
	<-s.done
}

func (s *EventService) Shutdown() error {
	if publisher, ok := s.Publisher.(*ValkeyPublisher); ok {
		publisher.Close()
	}

	return nil
}

func (s *EventService) HandleEvent(event Event) {
	entry := log.WithFields(log.Fields{
		"event": event.Type,
		"id":    event.ID,
		"game":  event.Game,
	})

	for k, v := range event.Attributes {
		entry = entry.WithField(k, v)
	}

	entry.WithField("caller", event.Caller).Info("game event")

	if s.Publisher == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		entry.WithError(err).Error("failed to encode event")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = s.Publisher.Publish(ctx, payload)
	if err != nil {
		entry.WithError(err).Warn("failed to publish event")
	}
}

func (s *EventService) processEvents() {
	defer close(s.done)

	for event := range s.EventSource {
		s.HandleEvent(event)
	}
}

type ValkeyPublisher struct {
	client  valkey.Client
	channel string
}

func NewValkeyPublisher(address, channel string) (*ValkeyPublisher, error) {
	//nolint:exhaustruct
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	return &ValkeyPublisher{
		client:  client,
		channel: channel,
	}, nil
}

func (p *ValkeyPublisher) Publish(ctx context.Context, payload []byte) error {
	cmd := p.client.B().Publish().Channel(p.channel).Message(string(payload)).Build()

	err := p.client.Do(ctx, cmd).Error()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}

	return nil
}

func (p *ValkeyPublisher) Close() {
	p.client.Close()
}
