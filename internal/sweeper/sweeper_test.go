package sweeper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/imrishuroy/marketplace-invoice-sync/internal/aws"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/awstest"
	"github.com/imrishuroy/marketplace-invoice-sync/internal/orders"
)

type stubInvoices map[string]bool

func (s stubInvoices) Exists(ctx context.Context, ref string) (bool, error) { return s[ref], nil }

type recordingBatch struct {
	calls  int
	shopID string
	refs   []string
}

func (r *recordingBatch) GenerateBatch(ctx context.Context, shopID string, pending []orders.Record) error {
	if len(pending) == 0 {
		return nil
	}
	r.calls++
	r.shopID = shopID
	for _, p := range pending {
		r.refs = append(r.refs, p.Reference)
	}
	return nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newSweeper(t *testing.T, recs []orders.Record, invoiced stubInvoices) (*Sweeper, *orders.Store, *recordingBatch, *awstest.CloudWatch) {
	t.Helper()
	db := awstest.NewDynamo()
	store := orders.NewStore(db, "orders")
	for _, r := range recs {
		if _, err := store.CreateIfNotExists(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.Reference, err)
		}
	}
	batch := &recordingBatch{}
	cw := &awstest.CloudWatch{}
	s := NewSweeper(store, invoiced, batch, aws.NewMetrics(cw, "test"), 3, nil)
	s.nowFunc = func() time.Time { return now }
	return s, store, batch, cw
}

func daysAgo(d int) time.Time { return now.Add(-time.Duration(d) * 24 * time.Hour) }

func TestSweep_PurgesStaleEvenWhenInvoiced(t *testing.T) {
	s, store, batch, cw := newSweeper(t, []orders.Record{
		{Reference: "old", CreatedAt: daysAgo(4)},
	}, stubInvoices{"old": true})

	res, err := s.Sweep(context.Background(), "77")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(res.Purged) != 1 || res.Purged[0] != "old" {
		t.Fatalf("expected old purged, got %+v", res)
	}
	if rec, _ := store.Get(context.Background(), "old"); rec != nil {
		t.Fatalf("stale record survived the sweep")
	}
	if batch.calls != 0 {
		t.Fatalf("purged records must not be requeued")
	}
	if cw.Values[MetricOrdersPurged] != 1 || cw.Values[MetricOrdersPending] != 0 {
		t.Fatalf("unexpected metrics: %v", cw.Values)
	}
}

func TestSweep_BoundaryAgeIsRetainedAndSubmitted(t *testing.T) {
	s, store, batch, _ := newSweeper(t, []orders.Record{
		{Reference: "edge", CreatedAt: daysAgo(3).Add(-time.Hour)},
		{Reference: "done", CreatedAt: daysAgo(3)},
		{Reference: "fresh", CreatedAt: daysAgo(0)},
	}, stubInvoices{"done": true})

	res, err := s.Sweep(context.Background(), "77")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(res.Purged) != 0 {
		t.Fatalf("age 3 must be retained, purged %v", res.Purged)
	}
	if rec, _ := store.Get(context.Background(), "edge"); rec == nil {
		t.Fatalf("edge record was deleted")
	}
	if batch.calls != 1 || batch.shopID != "77" {
		t.Fatalf("expected one batch for shop 77, got %+v", batch)
	}
	if len(batch.refs) != 2 || batch.refs[0] != "edge" || batch.refs[1] != "fresh" {
		t.Fatalf("unexpected pending refs %v", batch.refs)
	}
}

func TestSweep_EmptyTableSubmitsNothing(t *testing.T) {
	s, _, batch, _ := newSweeper(t, nil, stubInvoices{})
	if _, err := s.Sweep(context.Background(), ""); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if batch.calls != 0 {
		t.Fatalf("expected no submission")
	}
}

func TestHandle_ReadsShopFromEvent(t *testing.T) {
	s, _, batch, _ := newSweeper(t, []orders.Record{{Reference: "r", CreatedAt: daysAgo(1)}}, stubInvoices{})

	for _, raw := range []string{`{"shop_pk": 1087841}`, `{"detail": {"shop_pk": "1087841"}}`} {
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if _, err := s.Handle(context.Background(), ev); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if batch.shopID != "1087841" {
			t.Fatalf("shop id not passed through for %s: %q", raw, batch.shopID)
		}
	}
}

func TestAgeDays_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	created := time.Date(2026, 3, 6, 18, 0, 0, 0, loc) // 2026-03-07T00:00Z
	if got := AgeDays(now, created); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
}
