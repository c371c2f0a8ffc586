package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
)

func TestResolveIdempotencyKeyMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, time.Hour)
	orgID := uuid.New()

	mock.ExpectGet(idemKey(orgID, "k1")).RedisNil()

	_, found, err := store.ResolveIdempotencyKey(context.Background(), orgID, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown key")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestResolveIdempotencyKeyHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, time.Hour)
	orgID := uuid.New()

	mock.ExpectGet(idemKey(orgID, "k1")).SetVal(`{"ok":true}`)

	payload, found, err := store.ResolveIdempotencyKey(context.Background(), orgID, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected hit")
	}
	if string(payload) != `{"ok":true}` {
		t.Fatalf("unexpected payload %q", payload)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveIdempotencyKeyFirstWriteWins(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := New(client, time.Hour)
	orgID := uuid.New()

	mock.ExpectSetNX(idemKey(orgID, "k1"), []byte(`{"n":1}`), time.Hour).SetVal(true)
	if err := store.SaveIdempotencyKey(context.Background(), orgID, "k1", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second save for the same key must not overwrite; SetNX returns false
	// and the store treats that as success.
	mock.ExpectSetNX(idemKey(orgID, "k1"), []byte(`{"n":2}`), time.Hour).SetVal(false)
	if err := store.SaveIdempotencyKey(context.Background(), orgID, "k1", []byte(`{"n":2}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
