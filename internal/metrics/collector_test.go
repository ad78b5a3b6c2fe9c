package metrics

import (
	"testing"
	"time"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpStorageSave, 10*time.Millisecond)
	c.RecordTiming(OpStorageSave, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap.StorageSave == nil {
		t.Fatal("StorageSave snapshot is nil")
	}
	if snap.StorageSave.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.StorageSave.Count)
	}
	if snap.StorageSave.MinTimeMs != 10 {
		t.Errorf("MinTimeMs = %d, want 10", snap.StorageSave.MinTimeMs)
	}
	if snap.StorageSave.MaxTimeMs != 30 {
		t.Errorf("MaxTimeMs = %d, want 30", snap.StorageSave.MaxTimeMs)
	}
	if snap.StorageSave.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %f, want 20", snap.StorageSave.AvgTimeMs)
	}
}

func TestCollector_RecordStream(t *testing.T) {
	c := NewCollector()

	c.RecordStream(2*time.Second, 200*time.Millisecond, 150)
	c.RecordStream(4*time.Second, 400*time.Millisecond, 50)

	snap := c.Snapshot()
	if snap.Stream == nil {
		t.Fatal("Stream snapshot is nil")
	}
	if snap.Stream.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Stream.Count)
	}
	if snap.Stream.TotalOutputTokens != 200 {
		t.Errorf("TotalOutputTokens = %d, want 200", snap.Stream.TotalOutputTokens)
	}
	if snap.Stream.AvgFirstTokenMs != 300 {
		t.Errorf("AvgFirstTokenMs = %f, want 300", snap.Stream.AvgFirstTokenMs)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := NewCollector()

	snap := c.Snapshot()
	if snap.Stream != nil || snap.StorageSave != nil || snap.ArchivePush != nil {
		t.Errorf("empty collector produced non-nil snapshots: %+v", snap)
	}
}
