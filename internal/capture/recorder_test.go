package capture

import (
	"sync"
	"testing"
)

type stepClock struct {
	now uint64
}

func (c *stepClock) Micros() uint64 { return c.now }

func TestNewRecorder(t *testing.T) {
	r := NewRecorder(4, &stepClock{})
	if r.Capacity() != 4 {
		t.Errorf("expected capacity 4, got %d", r.Capacity())
	}
	if r.Armed() {
		t.Error("new recorder should not be armed")
	}
	if r.Count() != 0 {
		t.Errorf("expected count 0, got %d", r.Count())
	}
	if _, ok := r.Last(); ok {
		t.Error("Last should report empty on a new recorder")
	}
}

func TestNewRecorderZeroCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero capacity")
		}
	}()
	NewRecorder(0, &stepClock{})
}

func TestRecorderIgnoresEdgesWhileDisarmed(t *testing.T) {
	r := NewRecorder(4, &stepClock{})
	if r.Record(10) {
		t.Error("Record should return false while disarmed")
	}
	if r.Count() != 0 {
		t.Errorf("expected count 0, got %d", r.Count())
	}
	if r.Dropped() != 0 {
		t.Errorf("disarmed edges should not count as dropped, got %d", r.Dropped())
	}
}

func TestRecorderOnEdgeUsesClock(t *testing.T) {
	clk := &stepClock{now: 1000}
	r := NewRecorder(4, clk)
	r.Arm()

	r.OnEdge()
	clk.now = 1050
	r.OnEdge()

	got := r.Snapshot()
	if len(got) != 2 || got[0] != 1000 || got[1] != 1050 {
		t.Errorf("expected [1000 1050], got %v", got)
	}
}

func TestRecorderLastIsMostRecentWrittenSlot(t *testing.T) {
	r := NewRecorder(8, &stepClock{})
	r.Arm()
	for _, ts := range []uint64{100, 150, 220} {
		r.Record(ts)
	}

	last, ok := r.Last()
	if !ok {
		t.Fatal("expected a last timestamp")
	}
	if last != 220 {
		t.Errorf("expected last=220 (slot count-1), got %d", last)
	}
}

func TestRecorderSaturates(t *testing.T) {
	r := NewRecorder(4, &stepClock{})
	r.Arm()

	for i := 0; i < 9; i++ {
		r.Record(uint64(i * 10))
	}

	if r.Count() != 4 {
		t.Errorf("expected count to saturate at 4, got %d", r.Count())
	}
	if r.Dropped() != 5 {
		t.Errorf("expected 5 dropped, got %d", r.Dropped())
	}
	if r.LastDropped() != 80 {
		t.Errorf("expected last dropped=80, got %d", r.LastDropped())
	}
	got := r.Snapshot()
	want := []uint64{0, 10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRecorderResetReusesSlots(t *testing.T) {
	r := NewRecorder(3, &stepClock{})
	r.Arm()
	r.Record(1)
	r.Record(2)
	r.Record(3)

	r.Reset()
	if r.Count() != 0 {
		t.Fatalf("expected count 0 after reset, got %d", r.Count())
	}

	// A full burst fits again after reset.
	for _, ts := range []uint64{10, 20, 30} {
		if !r.Record(ts) {
			t.Errorf("record %d after reset should succeed", ts)
		}
	}
	got := r.Snapshot()
	if len(got) != 3 || got[0] != 10 || got[2] != 30 {
		t.Errorf("expected [10 20 30], got %v", got)
	}
}

func TestRecorderReleaseKeepsLaterEdges(t *testing.T) {
	r := NewRecorder(4, &stepClock{})
	r.Arm()
	r.Record(1)
	r.Record(2)

	snap := r.Snapshot()
	// An edge arrives between snapshot and release.
	r.Record(900)
	r.Release(len(snap))

	if r.Count() != 1 {
		t.Fatalf("expected the late edge to survive, count=%d", r.Count())
	}
	last, _ := r.Last()
	if last != 900 {
		t.Errorf("expected surviving edge 900, got %d", last)
	}
}

func TestRecorderReleaseClampsToCount(t *testing.T) {
	r := NewRecorder(4, &stepClock{})
	r.Arm()
	r.Record(1)
	r.Release(10)
	if r.Count() != 0 {
		t.Errorf("expected count 0, got %d", r.Count())
	}
	if !r.Record(2) || r.Count() != 1 {
		t.Error("recorder should accept edges after an over-long release")
	}
}

func TestRecorderSnapshotIsACopy(t *testing.T) {
	r := NewRecorder(2, &stepClock{})
	r.Arm()
	r.Record(5)
	snap := r.Snapshot()
	r.Reset()
	r.Record(99)
	if snap[0] != 5 {
		t.Errorf("snapshot changed after reuse: %v", snap)
	}
}

// TestRecorderConcurrentProducer runs the edge handler on its own goroutine
// while the polling side snapshots and releases. Run with -race.
func TestRecorderConcurrentProducer(t *testing.T) {
	const edges = 5000
	r := NewRecorder(64, &stepClock{})
	r.Arm()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= edges; i++ {
			for !r.Record(uint64(i)) {
				// full until the consumer releases
			}
		}
	}()

	var seen []uint64
	for len(seen) < edges {
		snap := r.Snapshot()
		seen = append(seen, snap...)
		r.Release(len(snap))
	}
	wg.Wait()

	for i, ts := range seen {
		if ts != uint64(i+1) {
			t.Fatalf("edge %d: expected %d, got %d", i, i+1, ts)
		}
	}
}
