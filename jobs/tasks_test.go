package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
)

type stubIntegrity struct {
	assignments int64
	parents     int64
	err         error
}

func (s stubIntegrity) DanglingCounts(ctx context.Context) (int64, int64, error) {
	return s.assignments, s.parents, s.err
}

type stubLister struct{ ids []int64 }

func (s stubLister) ActiveUserIDs(ctx context.Context, limit int) ([]int64, error) {
	return s.ids, nil
}

type stubWarmer struct {
	calls  int
	failOn int64
}

func (s *stubWarmer) EffectiveRights(ctx context.Context, userID int64) ([]int64, error) {
	s.calls++
	if userID == s.failOn {
		return nil, errors.New("boom")
	}
	return []int64{1}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestIntegrityScanHandler(t *testing.T) {
	handler := NewIntegrityScanHandler(stubIntegrity{assignments: 2, parents: 1}, nil, discard())
	if err := handler(context.Background(), NewRBACIntegrityScanTask()); err != nil {
		t.Fatalf("handler: %v", err)
	}
	handler = NewIntegrityScanHandler(stubIntegrity{err: errors.New("db down")}, nil, discard())
	if err := handler(context.Background(), NewRBACIntegrityScanTask()); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
}

func TestCacheWarmHandlerContinuesOnFailure(t *testing.T) {
	warmer := &stubWarmer{failOn: 2}
	handler := NewRightsCacheWarmHandler(stubLister{ids: []int64{1, 2, 3}}, warmer, discard())
	if err := handler(context.Background(), NewRightsCacheWarmTask()); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if warmer.calls != 3 {
		t.Fatalf("calls = %d, one failure must not stop the batch", warmer.calls)
	}
}

func TestAuditPruneTaskRoundTrip(t *testing.T) {
	task, err := NewAuditPruneTask(90)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskAuditPrune {
		t.Fatalf("type = %q", task.Type())
	}
}

func TestAuditPruneHandlerSkipsBadPayload(t *testing.T) {
	handler := NewAuditPruneHandler(nil, discard())
	err := handler(context.Background(), asynq.NewTask(TaskAuditPrune, []byte("not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}
