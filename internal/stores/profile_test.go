package stores

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newProfileStore(t *testing.T) (*ProfileStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewProfileStore(rdb, "vz"), mr
}

func TestProfileStoreSaveGet(t *testing.T) {
	store, mr := newProfileStore(t)
	ctx := context.Background()

	rec := &ProfileRecord{Data: json.RawMessage(`{"id":7,"nome":"Ana"}`), Timestamp: 1234}
	if err := store.Save(ctx, "7", rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Timestamp != 1234 || string(got.Data) != `{"id":7,"nome":"Ana"}` {
		t.Fatalf("unexpected record %+v", got)
	}
	if ttl := mr.TTL("vz:profile:7"); ttl != 0 {
		t.Fatalf("profile records must not expire, ttl=%v", ttl)
	}
}

func TestProfileStoreKeyedByUser(t *testing.T) {
	store, _ := newProfileStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "1", &ProfileRecord{Data: json.RawMessage(`{"id":1}`), Timestamp: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Get(ctx, "2"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for other user, got %v", err)
	}
}

func TestProfileStoreCorruptRecord(t *testing.T) {
	store, mr := newProfileStore(t)
	_ = mr.Set("vz:profile:3", "{not json")

	if _, err := store.Get(context.Background(), "3"); !errors.Is(err, ErrProfileRecordCorrupt) {
		t.Fatalf("expected ErrProfileRecordCorrupt, got %v", err)
	}
}

func TestProfileStoreRequiresUserID(t *testing.T) {
	store, _ := newProfileStore(t)
	if err := store.Save(context.Background(), "", &ProfileRecord{Data: json.RawMessage(`{}`)}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
