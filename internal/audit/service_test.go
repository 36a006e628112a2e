package audit

import (
	"context"
	"testing"
	"time"
)

type stubRepo struct {
	rows      []TimelineRow
	lastLimit int
	pruned    time.Time
}

func (r *stubRepo) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	r.lastLimit = limit
	end := offset + limit
	if offset >= len(r.rows) {
		return nil, nil
	}
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return r.rows[offset:end], nil
}

func (r *stubRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	r.pruned = olderThan
	return 3, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{Action: "update", Entity: "role"}
	}
	return rows
}

func TestTimelinePagingHasNext(t *testing.T) {
	repo := &stubRepo{rows: makeRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("limit = %d, want pageSize+1", repo.lastLimit)
	}
	if len(result.Rows) != 20 || !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("paging = %+v rows=%d", result.Paging, len(result.Rows))
	}

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 5 || result.Paging.HasNext || result.Paging.PrevPage != 1 {
		t.Fatalf("paging = %+v rows=%d", result.Paging, len(result.Rows))
	}
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: makeRows(5)}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("limit = %d, page size not clamped to 50", repo.lastLimit)
	}
}

func TestPruneRejectsNonPositiveRetention(t *testing.T) {
	svc := NewService(&stubRepo{})
	if _, err := svc.Prune(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero retention")
	}
}
