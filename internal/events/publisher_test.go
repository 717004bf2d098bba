package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"healthfinance/pkg/requestcontext"
)

// fakeProducer records produced records and completes each promise
// synchronously with a configurable error.
type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	promise(r, f.err)
}

func (f *fakeProducer) produced() []*kgo.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*kgo.Record{}, f.records...)
}

func newTestPublisher(t *testing.T, producer Producer) *Publisher {
	t.Helper()
	p, err := NewPublisher(producer, "billing-service", "test")
	require.NoError(t, err)
	return p
}

func TestPublisher_StampsDefaults(t *testing.T) {
	producer := &fakeProducer{}
	p := newTestPublisher(t, producer)

	e := New(TypeInvoiceCreated, "inv-1", InvoiceCreated{InvoiceID: "inv-1"})
	require.NoError(t, p.Publish(context.Background(), TopicPatientEvents, e))

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, 1, e.Version)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "billing-service", e.Metadata.PublishingService)
	assert.Equal(t, "test", e.Metadata.Environment)
}

func TestPublisher_DoesNotOverrideCallerMetadata(t *testing.T) {
	producer := &fakeProducer{}
	p := newTestPublisher(t, producer)

	e := New(TypeInvoiceCreated, "inv-1", nil)
	e.Metadata.PublishingService = "appointment-service"
	e.Metadata.Environment = "staging"
	require.NoError(t, p.Publish(context.Background(), TopicPatientEvents, e))

	assert.Equal(t, "appointment-service", e.Metadata.PublishingService)
	assert.Equal(t, "staging", e.Metadata.Environment)
}

func TestPublisher_CopiesRequestContextWhenUnset(t *testing.T) {
	producer := &fakeProducer{}
	p := newTestPublisher(t, producer)

	ctx := requestcontext.WithCorrelationID(context.Background(), "corr-7")
	ctx = requestcontext.WithUserID(ctx, "user-3")

	e := New(TypePaymentRecorded, "inv-2", nil)
	require.NoError(t, p.Publish(ctx, TopicPatientEvents, e))

	assert.Equal(t, "corr-7", e.Metadata.CorrelationID)
	assert.Equal(t, "user-3", e.Metadata.UserID)
}

func TestPublisher_KeysRecordByAggregateID(t *testing.T) {
	producer := &fakeProducer{}
	p := newTestPublisher(t, producer)

	e := New(TypeAppointmentScheduled, "apt-55", AppointmentScheduled{AppointmentID: "apt-55"})
	require.NoError(t, p.Publish(context.Background(), TopicAppointmentEvents, e))

	records := producer.produced()
	require.Len(t, records, 1)
	assert.Equal(t, TopicAppointmentEvents, records[0].Topic)
	assert.Equal(t, []byte("apt-55"), records[0].Key)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &wire))
	assert.Equal(t, "apt-55", wire["appointmentId"])
}

func TestPublisher_PreservesPerAggregateOrder(t *testing.T) {
	producer := &fakeProducer{}
	p := newTestPublisher(t, producer)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		var e *Envelope
		if i%2 == 0 {
			e = New(TypeAppointmentScheduled, "apt-1", AppointmentScheduled{DurationMinutes: i})
		} else {
			e = New(TypeAppointmentCancelled, "apt-1", AppointmentCancelled{CancelledBy: "SYSTEM"})
		}
		e.Version = i + 1
		require.NoError(t, p.Publish(ctx, TopicAppointmentEvents, e))
	}

	records := producer.produced()
	require.Len(t, records, 10)
	for i, r := range records {
		assert.Equal(t, []byte("apt-1"), r.Key)
		var wire struct {
			Version int `json:"version"`
		}
		require.NoError(t, json.Unmarshal(r.Value, &wire))
		assert.Equal(t, i+1, wire.Version, "records for one aggregate must keep publish order")
	}
}

func TestPublisher_BrokerFailureIsAbsorbed(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	p := newTestPublisher(t, producer)

	e := New(TypeInvoiceCreated, "inv-1", nil)
	// The callback reports the failure; Publish itself must not.
	assert.NoError(t, p.Publish(context.Background(), TopicPatientEvents, e))
}

func TestPublisher_RejectsMissingAggregateID(t *testing.T) {
	p := newTestPublisher(t, &fakeProducer{})

	e := New(TypeInvoiceCreated, "", nil)
	assert.Error(t, p.Publish(context.Background(), TopicPatientEvents, e))
}

func TestNewPublisher_RequiresProducer(t *testing.T) {
	_, err := NewPublisher(nil, "svc", "dev")
	assert.Error(t, err)
}
