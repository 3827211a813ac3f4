package memory

import (
	"context"
	"sync"

	appoutbox "staybook/internal/app/outbox"
)

// Outbox holds committed records until Flush hands them to the publisher.
// Records that fail to publish stay queued in order for the next flush.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	publisher appoutbox.Publisher
}

func NewOutbox(publisher appoutbox.Publisher) *Outbox {
	return &Outbox{publisher: publisher}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.publisher == nil {
		o.records = nil
		return nil
	}
	for len(o.records) > 0 {
		if err := o.publisher.Publish(ctx, o.records[0]); err != nil {
			return err
		}
		o.records = o.records[1:]
	}
	o.records = nil
	return nil
}

// Pending reports how many records wait for publication.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.records)
}

// EventLog is a publisher that keeps everything it receives. It stands in
// for the broker when none is configured.
type EventLog struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
}

func (l *EventLog) Publish(ctx context.Context, record appoutbox.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *EventLog) Records() []appoutbox.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), l.records...)
}

// Names lists published event names in order.
func (l *EventLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r.Name)
	}
	return out
}

var (
	_ appoutbox.Outbox    = (*Outbox)(nil)
	_ appoutbox.Publisher = (*EventLog)(nil)
)
