package credstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "robin"), mr
}

func TestRedisRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if _, err := store.Token(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store must report ErrNotFound, got %v", err)
	}

	if err := store.SetToken(ctx, "tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := store.SetUser(ctx, validProfile()); err != nil {
		t.Fatalf("set user: %v", err)
	}

	if got, err := mr.Get("robin:access_token"); err != nil || got != "tok" {
		t.Fatalf("token not under the expected key: %q, %v", got, err)
	}

	u, err := store.User(ctx)
	if err != nil {
		t.Fatalf("user round trip: %v", err)
	}
	if u.ID != "7" || u.Permissions[0] != "queues:read" {
		t.Fatalf("unexpected profile: %+v", u)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("robin:access_token") || mr.Exists("robin:user") {
		t.Fatal("clear must remove both keys")
	}
}

func TestRedisCorruptProfilePurgesBoth(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.SetToken(ctx, "tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	mr.Set("robin:user", `{"id": 1}`)

	if _, err := store.User(ctx); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
	if mr.Exists("robin:access_token") || mr.Exists("robin:user") {
		t.Fatal("corruption must purge both keys")
	}
}

func TestRedisWatchSeesOtherInstanceEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	rdbA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdbA.Close(); _ = rdbB.Close() })

	a := NewRedis(rdbA, "robin")
	b := NewRedis(rdbB, "robin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := a.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	wctx := WithOrigin(context.Background(), "instance-b")
	if err := b.Clear(wctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	select {
	case got := <-events:
		if got.Op != OpClear || got.Origin != "instance-b" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the clear event")
	}
}
