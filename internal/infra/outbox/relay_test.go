package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
)

type sentMessage struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	sent []sentMessage
	fail error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

var occurred = time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"b-1","status":"confirmed"}`),
		OccurredAt: occurred,
		Aggregate:  "b-1",
		Headers:    map[string]string{"content-type": "application/json", "traceparent": "00-abc-01"},
	}
}

func TestRelayWrapsCloudEvent(t *testing.T) {
	producer := &fakeProducer{}
	relay := &Relay{Producer: producer, TopicPrefix: "stage."}

	require.NoError(t, relay.Publish(context.Background(), record("evt-1", "booking.confirmed")))
	require.Len(t, producer.sent, 1)
	msg := producer.sent[0]
	assert.Equal(t, "stage.booking.events.v1", msg.topic)
	assert.Equal(t, "b-1", msg.key)
	assert.Equal(t, "application/cloudevents+json", msg.headers["content-type"])
	assert.Equal(t, "booking.confirmed.v1", msg.headers["ce-type"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "evt-1", evt["id"])
	assert.Equal(t, "app://staybook", evt["source"])
	assert.Equal(t, "00-abc-01", evt["traceparent"])
	assert.Equal(t, "2024-11-01T09:00:00Z", evt["time"])
	data, ok := evt["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "confirmed", data["status"])
}

func TestRelayRejectsBrokenPayload(t *testing.T) {
	relay := &Relay{Producer: &fakeProducer{}}
	rec := record("evt-1", "booking.created")
	rec.Payload = []byte("not json")
	assert.Error(t, relay.Publish(context.Background(), rec))

	var unset *Relay
	assert.ErrorIs(t, unset.Publish(context.Background(), rec), ErrRelayNotConfigured)
}

type fakeQueue struct {
	docs   []*EventDocument
	sent   []string
	failed map[string]time.Time
}

func (q *fakeQueue) Claim(context.Context, string) (*EventDocument, error) {
	for _, d := range q.docs {
		if d.State == stateNew {
			d.State = stateClaimed
			return d, nil
		}
	}
	return nil, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	if q.failed == nil {
		q.failed = map[string]time.Time{}
	}
	q.failed[id] = next
	return nil
}

func docFor(rec appoutbox.EventRecord, attempts int) *EventDocument {
	return &EventDocument{
		ID:         rec.ID,
		Name:       rec.Name,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		Aggregate:  rec.Aggregate,
		Headers:    rec.Headers,
		State:      stateNew,
		Attempts:   attempts,
	}
}

func TestWorkerDrainsInOrder(t *testing.T) {
	queue := &fakeQueue{docs: []*EventDocument{
		docFor(record("e1", "booking.created"), 0),
		docFor(record("e2", "booking.confirmed"), 0),
	}}
	producer := &fakeProducer{}
	w := &Worker{Store: queue, Publisher: &Relay{Producer: producer}}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e1", "e2"}, queue.sent)
	require.Len(t, producer.sent, 2)
}

func TestWorkerParksFailedRecordsWithBackoff(t *testing.T) {
	queue := &fakeQueue{docs: []*EventDocument{docFor(record("e1", "booking.created"), 1)}}
	w := &Worker{
		Store:     queue,
		Publisher: &Relay{Producer: &fakeProducer{fail: errors.New("broker down")}},
		Backoff:   []time.Duration{time.Second, 5 * time.Second},
		now:       func() time.Time { return occurred },
	}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, queue.sent)
	assert.Equal(t, occurred.Add(5*time.Second), queue.failed["e1"])
	assert.Equal(t, occurred.Add(5*time.Second), w.nextRetry(7))
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &Worker{}
	assert.ErrorIs(t, w.Run(context.Background()), ErrWorkerNotConfigured)
}
