package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/budget"
	renderdomain "github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/orchestrator"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRequestID = "8f14e45f-ceea-467e-9a57-3c5f2e9d1b10"

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcker struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) find(tag uint64) (ackRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.records {
		if r.tag == tag {
			return r, true
		}
	}
	return ackRecord{}, false
}

type fakeBroker struct {
	deliveries chan amqp.Delivery
	tag        string
	prefetch   int
}

func (b *fakeBroker) Consume(consumerTag string, prefetchCount int) (<-chan amqp.Delivery, error) {
	b.tag = consumerTag
	b.prefetch = prefetchCount
	return b.deliveries, nil
}

type fakePlanner struct {
	plan pipeline.Plan
}

func (p fakePlanner) Plan(pipeline.PlanRequest, map[int]string) pipeline.Plan {
	return p.plan
}

func page(i int) *int {
	return &i
}

func testPlan(n int) pipeline.Plan {
	views := make([]renderdomain.ViewSpec, n)
	for i := range views {
		views[i] = renderdomain.ViewSpec{
			ID:        fmt.Sprintf("ext-facade-%d", i),
			Type:      renderdomain.ViewFacadeMain,
			Category:  renderdomain.CategoryExterior,
			PageIndex: page(0),
			Model:     renderdomain.ModelFlux11Pro,
			Quality:   renderdomain.QualityHD,
			TimeOfDay: renderdomain.TimeDay,
			Camera:    renderdomain.Camera{Focus: fmt.Sprintf("facade %d", i)},
		}
	}
	return pipeline.Plan{
		Views:     views,
		BaseViews: n,
		Check:     budget.Check{Allowed: true},
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	ids      []string
	requests []pipeline.BatchRequest
	err      error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, messageID string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, messageID)
	p.requests = append(p.requests, v.(pipeline.BatchRequest))
	return nil
}

func (p *fakePublisher) published() []pipeline.BatchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipeline.BatchRequest(nil), p.requests...)
}

// countingProvider fails the calls for which fail returns true
func countingProvider(calls *atomic.Int32, fail func(call int32) bool) provider.Generator {
	return provider.GeneratorFunc(func(ctx context.Context, req provider.Request, onProgress provider.ProgressFunc) ([]provider.Result, error) {
		n := calls.Add(1)
		if fail(n) {
			return nil, errors.New("upstream 503")
		}
		return []provider.Result{{ID: "pred", ImageURL: "https://img.example/out.png", CostUSD: 0.005}}, nil
	})
}

func instantProvider() provider.Generator {
	return provider.GeneratorFunc(func(ctx context.Context, req provider.Request, onProgress provider.ProgressFunc) ([]provider.Result, error) {
		return []provider.Result{{ID: "pred", ImageURL: "https://img.example/out.png", CostUSD: 0.005}}, nil
	})
}

func blockingProvider() provider.Generator {
	return provider.GeneratorFunc(func(ctx context.Context, req provider.Request, onProgress provider.ProgressFunc) ([]provider.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func newTestRenderer(t *testing.T, p provider.Generator) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(&orchestrator.Config{Provider: p, MaxConcurrency: 2})
	t.Cleanup(o.Close)
	return o
}

func batchBody(t *testing.T, requestID string, images map[int]string) []byte {
	t.Helper()
	body, err := json.Marshal(pipeline.BatchRequest{RequestID: requestID, InputImages: images})
	require.NoError(t, err)
	return body
}

func TestParseBatchRequest(t *testing.T) {
	images := map[int]string{0: "data:image/png;base64,AAAA"}

	tests := []struct {
		name    string
		body    []byte
		wantErr bool
	}{
		{name: "valid", body: batchBody(t, testRequestID, images)},
		{name: "malformed json", body: []byte(`{"request_id":`), wantErr: true},
		{name: "request id not a uuid", body: batchBody(t, "batch-42", images), wantErr: true},
		{name: "no input images", body: batchBody(t, testRequestID, nil), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseBatchRequest(tt.body)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testRequestID, req.RequestID)
			assert.Equal(t, images, req.InputImages)
		})
	}
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid payload", err: fmt.Errorf("%w: bad", domain.ErrInvalidPayload), want: false},
		{name: "budget exceeded", err: domain.ErrBudgetExceeded, want: false},
		{name: "empty batch", err: domain.ErrEmptyBatch, want: false},
		{name: "timed out", err: fmt.Errorf("%w: batch-1", domain.ErrBatchTimedOut), want: false},
		{name: "retryable", err: domain.NewRetryableError(context.Canceled), want: true},
		{name: "unknown", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(&Config{Concurrency: 3})
	assert.Equal(t, 3, w.concurrency)
	assert.Equal(t, 3, w.prefetchCount)
	assert.Equal(t, DefaultBatchTimeout, w.batchTimeout)
	assert.Contains(t, w.ID(), "worker-")
}

func TestProcessBatch(t *testing.T) {
	images := map[int]string{0: "data:image/png;base64,AAAA"}

	t.Run("runs the batch to completion", func(t *testing.T) {
		renderer := newTestRenderer(t, instantProvider())
		w := NewWorker(&Config{Planner: fakePlanner{plan: testPlan(3)}, Renderer: renderer})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{RequestID: testRequestID, InputImages: images}}
		require.NoError(t, w.processBatch(context.Background(), msg))
		assert.Empty(t, renderer.Batches(), "finished batches are cleared")
	})

	t.Run("over budget is rejected before rendering", func(t *testing.T) {
		renderer := newTestRenderer(t, instantProvider())
		plan := testPlan(3)
		plan.Check = budget.Check{Allowed: false, Reasons: []string{"too many views"}}
		w := NewWorker(&Config{Planner: fakePlanner{plan: plan}, Renderer: renderer})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{RequestID: testRequestID, InputImages: images}}
		err := w.processBatch(context.Background(), msg)
		require.ErrorIs(t, err, domain.ErrBudgetExceeded)
		assert.Contains(t, err.Error(), "too many views")
		assert.Empty(t, renderer.Batches())
	})

	t.Run("no view matches an input image", func(t *testing.T) {
		renderer := newTestRenderer(t, instantProvider())
		w := NewWorker(&Config{Planner: fakePlanner{plan: testPlan(2)}, Renderer: renderer})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{
			RequestID:   testRequestID,
			InputImages: map[int]string{7: "data:image/png;base64,AAAA"},
		}}
		require.ErrorIs(t, w.processBatch(context.Background(), msg), domain.ErrEmptyBatch)
	})

	t.Run("timeout cancels the batch", func(t *testing.T) {
		renderer := newTestRenderer(t, blockingProvider())
		w := NewWorker(&Config{
			Planner:      fakePlanner{plan: testPlan(2)},
			Renderer:     renderer,
			BatchTimeout: 30 * time.Millisecond,
		})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{RequestID: testRequestID, InputImages: images}}
		err := w.processBatch(context.Background(), msg)
		require.ErrorIs(t, err, domain.ErrBatchTimedOut)
		assert.False(t, shouldRequeue(err))
		assert.Empty(t, renderer.Batches())
	})

	t.Run("shutdown asks for a requeue", func(t *testing.T) {
		renderer := newTestRenderer(t, instantProvider())
		w := NewWorker(&Config{Planner: fakePlanner{plan: testPlan(1)}, Renderer: renderer})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{RequestID: testRequestID, InputImages: images}}
		err := w.processBatch(ctx, msg)
		require.Error(t, err)
		assert.True(t, shouldRequeue(err))
	})
}

func TestProcessBatch_RequeuesFailedViews(t *testing.T) {
	images := map[int]string{0: "data:image/png;base64,AAAA"}
	planReq := pipeline.PlanRequest{Analysis: renderdomain.Analysis{Project: renderdomain.ProjectInfo{Style: renderdomain.StyleModern}}}

	t.Run("failed views go back on the queue", func(t *testing.T) {
		var calls atomic.Int32
		renderer := newTestRenderer(t, countingProvider(&calls, func(n int32) bool { return n == 1 }))
		pub := &fakePublisher{}
		w := NewWorker(&Config{
			Planner:    fakePlanner{plan: testPlan(3)},
			Renderer:   renderer,
			Publisher:  pub,
			MaxRetries: 2,
		})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{
			RequestID:   testRequestID,
			Plan:        planReq,
			InputImages: images,
			Force:       true,
		}}
		require.NoError(t, w.processBatch(context.Background(), msg))
		assert.Equal(t, int32(3), calls.Load())

		published := pub.published()
		require.Len(t, published, 1)
		next := published[0]
		assert.Equal(t, pub.ids[0], next.RequestID)
		assert.NotEqual(t, testRequestID, next.RequestID)
		_, err := parseBatchRequest(mustJSON(t, next))
		assert.NoError(t, err, "requeued request passes validation")
		assert.Equal(t, 1, next.Attempt)
		assert.Equal(t, planReq, next.Plan)
		assert.Equal(t, images, next.InputImages)
		assert.True(t, next.Force)
		require.Len(t, next.Views, 1)
		assert.Contains(t, next.Views[0].ID, "ext-facade-")
	})

	t.Run("requeued views replace the plan and skip the limit check", func(t *testing.T) {
		var calls atomic.Int32
		renderer := newTestRenderer(t, countingProvider(&calls, func(int32) bool { return false }))
		plan := testPlan(3)
		plan.Check = budget.Check{Allowed: false, Reasons: []string{"too many views"}}
		pub := &fakePublisher{}
		w := NewWorker(&Config{Planner: fakePlanner{plan: plan}, Renderer: renderer, Publisher: pub, MaxRetries: 2})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{
			RequestID:   testRequestID,
			InputImages: images,
			Views:       testPlan(1).Views,
			Attempt:     1,
		}}
		require.NoError(t, w.processBatch(context.Background(), msg))
		assert.Equal(t, int32(1), calls.Load())
		assert.Empty(t, pub.published())
	})

	t.Run("attempt limit stops the requeue", func(t *testing.T) {
		var calls atomic.Int32
		renderer := newTestRenderer(t, countingProvider(&calls, func(int32) bool { return true }))
		pub := &fakePublisher{}
		w := NewWorker(&Config{Planner: fakePlanner{plan: testPlan(2)}, Renderer: renderer, Publisher: pub, MaxRetries: 1})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{
			RequestID:   testRequestID,
			InputImages: images,
			Views:       testPlan(2).Views,
			Attempt:     1,
		}}
		require.NoError(t, w.processBatch(context.Background(), msg))
		assert.Equal(t, int32(2), calls.Load())
		assert.Empty(t, pub.published())
	})

	t.Run("publish failure still acks the batch", func(t *testing.T) {
		var calls atomic.Int32
		renderer := newTestRenderer(t, countingProvider(&calls, func(int32) bool { return true }))
		pub := &fakePublisher{err: errors.New("channel closed")}
		w := NewWorker(&Config{Planner: fakePlanner{plan: testPlan(1)}, Renderer: renderer, Publisher: pub, MaxRetries: 1})

		msg := &domain.BatchMessage{Request: pipeline.BatchRequest{RequestID: testRequestID, InputImages: images}}
		require.NoError(t, w.processBatch(context.Background(), msg))
		assert.Empty(t, renderer.Batches())
	})
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func TestWorker_Start(t *testing.T) {
	acker := &fakeAcker{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 2)}
	broker.deliveries <- amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  1,
		Body:         batchBody(t, testRequestID, map[int]string{0: "data:image/png;base64,AAAA"}),
	}
	broker.deliveries <- amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  2,
		Body:         []byte("not json"),
	}

	w := NewWorker(&Config{
		Broker:        broker,
		Planner:       fakePlanner{plan: testPlan(2)},
		Renderer:      newTestRenderer(t, instantProvider()),
		Concurrency:   2,
		PrefetchCount: 4,
		WorkerID:      "worker-test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, acked := acker.find(1)
		_, nacked := acker.find(2)
		return acked && nacked
	}, 2*time.Second, 10*time.Millisecond)

	good, _ := acker.find(1)
	assert.True(t, good.ack)

	bad, _ := acker.find(2)
	assert.False(t, bad.ack)
	assert.False(t, bad.requeue)

	assert.Equal(t, "worker-test", broker.tag)
	assert.Equal(t, 4, broker.prefetch)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_StartWithoutBroker(t *testing.T) {
	w := NewWorker(&Config{})
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker is nil")
}

var _ Renderer = (*orchestrator.Orchestrator)(nil)
var _ Publisher = (*fakePublisher)(nil)
var _ Planner = (*pipeline.Planner)(nil)
