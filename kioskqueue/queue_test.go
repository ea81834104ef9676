package kioskqueue

import (
	"context"
	"testing"
	"time"
)

func TestSubmitDurableBeforeDelivery(t *testing.T) {
	// Sender that would fail if ever reached; network totally unreachable.
	sender := &fakeSender{}
	q := newTestQueue(t, sender, NewSwitchConnectivity(false))
	ctx := context.Background()

	id, err := q.Submit(ctx, FeedbackPayload{Rating: 3, Comment: "ok"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	q.Close()

	rec, err := q.Store().Get(ctx, id)
	if err != nil {
		t.Fatalf("record must exist after submit returns: %v", err)
	}
	if rec.Synced {
		t.Error("record cannot be synced while unreachable")
	}
	if rec.DeviceID != q.DeviceID {
		t.Errorf("record carries wrong device id: %q", rec.DeviceID)
	}
}

func TestSubmitStampsMissingTimestamp(t *testing.T) {
	q := newTestQueue(t, &fakeSender{}, NewSwitchConnectivity(false))
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	id, err := q.Submit(context.Background(), FeedbackPayload{Rating: 5})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	q.Close()

	rec, err := q.Store().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.Payload.Timestamp.Equal(fixed) {
		t.Errorf("expected stamped timestamp %v, got %v", fixed, rec.Payload.Timestamp)
	}
}

func TestStatusCounts(t *testing.T) {
	q := newTestQueue(t, &fakeSender{}, NewSwitchConnectivity(true))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := func(id string, attempts int, synced bool) {
		rec := testRecord(id, now)
		rec.DeviceID = q.DeviceID
		if err := q.Store().Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
		for i := 0; i < attempts; i++ {
			if err := q.Store().MarkAttempt(ctx, id, now); err != nil {
				t.Fatalf("mark attempt %s: %v", id, err)
			}
		}
		if synced {
			if err := q.Store().MarkSynced(ctx, id); err != nil {
				t.Fatalf("mark synced %s: %v", id, err)
			}
		}
	}

	seed("fresh", 0, false)
	seed("retrying-1", 2, false)
	seed("retrying-2", 4, false)
	seed("abandoned", 5, false)
	seed("delivered", 1, true)

	st, err := q.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Total != 4 {
		t.Errorf("expected total=4, got %d", st.Total)
	}
	if st.Retrying != 2 {
		t.Errorf("expected retrying=2, got %d", st.Retrying)
	}
	if st.Failed != 1 {
		t.Errorf("expected failed=1, got %d", st.Failed)
	}
	if !st.Online {
		t.Error("expected online=true")
	}
}

func TestQueueCleanup(t *testing.T) {
	q := newTestQueue(t, &fakeSender{}, NewSwitchConnectivity(true))
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	old := testRecord("old", now.Add(-8*24*time.Hour))
	old.DeviceID = q.DeviceID
	if err := q.Store().Save(ctx, old); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := q.Store().MarkSynced(ctx, "old"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	deleted, err := q.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}
