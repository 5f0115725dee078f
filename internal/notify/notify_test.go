package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/worker"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent() domain.Event {
	return domain.Event{
		Type:       "document.approved",
		DocumentID: uuid.New(),
		Variant:    domain.VariantLetter,
		From:       "PENDING",
		To:         "APPROVED",
		Note:       "ok",
		At:         time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []domain.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func TestDispatcher_FansOutToEverySink(t *testing.T) {
	pool := worker.NewWorkerPool(2, 10, time.Second, nil)
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: errors.New("down")}
	d := NewDispatcher(pool, zap.NewNop(), ok, failing)

	d.Emit(sampleEvent())
	d.Emit(sampleEvent())
	pool.Shutdown()

	assert.Len(t, ok.events, 2)
	assert.Len(t, failing.events, 2)
}

func TestDispatcher_EmitAfterShutdownDoesNotBlock(t *testing.T) {
	pool := worker.NewWorkerPool(1, 1, 0, nil)
	pool.Shutdown()
	sink := &recordingSink{name: "late"}

	NewDispatcher(pool, nil, sink).Emit(sampleEvent())

	assert.Empty(t, sink.events)
}

type fakePublisher struct {
	channel string
	payload []byte
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	f.channel, f.payload = channel, payload
	return nil
}

func TestRedisSink(t *testing.T) {
	pub := &fakePublisher{}
	ev := sampleEvent()

	require.NoError(t, NewRedisSink(pub, "workflow-events").Send(context.Background(), ev))

	assert.Equal(t, "workflow-events", pub.channel)
	var got domain.Event
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, ev.DocumentID, got.DocumentID)
	assert.Equal(t, "document.approved", got.Type)
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSNSSink(t *testing.T) {
	client := &fakeSNS{}

	require.NoError(t, NewSNSSink(client, "arn:aws:sns:us-east-1:1:workflow").Send(context.Background(), sampleEvent()))

	assert.Equal(t, "arn:aws:sns:us-east-1:1:workflow", aws.ToString(client.input.TopicArn))
	assert.Equal(t, "document.approved", aws.ToString(client.input.MessageAttributes["event_type"].StringValue))
	assert.Contains(t, aws.ToString(client.input.Message), `"to":"APPROVED"`)
}

func TestWebhookSink(t *testing.T) {
	var gotAuth, gotType string
	var gotBody domain.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("X-Event-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ev := sampleEvent()
	require.NoError(t, NewWebhookSink(server.URL, "s3cret").Send(context.Background(), ev))

	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "document.approved", gotType)
	assert.Equal(t, ev.DocumentID, gotBody.DocumentID)
}

func TestWebhookSink_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookSink(server.URL, "").Send(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, NewLogSink(zap.NewNop()).Send(context.Background(), sampleEvent()))
}
