package sink

import (
	"context"
	"testing"
)

func TestSQLiteStoreAppendSelectMarkDelete(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	id, err := store.Append(ctx, Reading{SensorID: 1, SensorName: "s1", Value: 10, Raw: 10, Ts: 100})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	unsynced, err := store.SelectUnsynced(ctx, 10)
	if err != nil {
		t.Fatalf("SelectUnsynced: %v", err)
	}
	if len(unsynced) != 1 || unsynced[0].ID != id {
		t.Fatalf("unexpected unsynced rows: %+v", unsynced)
	}

	if err := store.MarkSynced(ctx, []int64{id}, 200); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	n, err := store.CountUnsynced(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 unsynced, got %d err=%v", n, err)
	}
	n, err = store.CountSynced(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 synced, got %d err=%v", n, err)
	}

	deleted, err := store.DeleteSyncedOlderThan(ctx, 500)
	if err != nil || deleted != 1 {
		t.Fatalf("expected 1 row deleted, got %d err=%v", deleted, err)
	}
}
