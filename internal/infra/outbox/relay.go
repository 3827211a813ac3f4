package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "staybook/internal/app/outbox"
)

var ErrRelayNotConfigured = errors.New("outbox: relay missing producer")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Relay wraps outbox records into CloudEvents and hands them to the broker.
// It is the Publisher behind both the in-memory outbox and the Mongo worker.
type Relay struct {
	Producer    Producer
	TopicPrefix string
	Source      string
	IDGenerator func() string
}

func (r *Relay) Publish(ctx context.Context, record appoutbox.EventRecord) error {
	if r == nil || r.Producer == nil {
		return ErrRelayNotConfigured
	}
	payload, headers, err := r.formatPayload(record)
	if err != nil {
		return err
	}
	return r.Producer.Publish(ctx, r.topicFor(record.Name), record.Aggregate, payload, headers)
}

func (r *Relay) formatPayload(record appoutbox.EventRecord) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, nil, err
	}
	id := record.ID
	if id == "" {
		id = r.newID()
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              id,
		"type":            record.Name + ".v1",
		"source":          r.source(),
		"subject":         record.Aggregate,
		"time":            record.OccurredAt.UTC().Format(time.RFC3339Nano),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := record.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{}
	for k, v := range record.Headers {
		headers[k] = v
	}
	headers["content-type"] = "application/cloudevents+json"
	headers["ce-id"] = id
	headers["ce-type"] = record.Name + ".v1"
	return payload, headers, nil
}

// topicFor maps booking.confirmed to booking.events.v1.
func (r *Relay) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if r.TopicPrefix != "" {
		topic = r.TopicPrefix + topic
	}
	return topic
}

func (r *Relay) newID() string {
	if r.IDGenerator != nil {
		return r.IDGenerator()
	}
	return uuid.NewString()
}

func (r *Relay) source() string {
	if r.Source != "" {
		return r.Source
	}
	return "app://staybook"
}

var _ appoutbox.Publisher = (*Relay)(nil)
