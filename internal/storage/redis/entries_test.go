package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/store"
	"github.com/goliatone/go-catalog-notifier/pkg/ledger"
)

func newTestStore(t *testing.T, prefix string) (*EntryStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewEntryStore(client, prefix)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return s, server
}

func TestEntryStoreKeyLayout(t *testing.T) {
	s, server := newTestStore(t, "ci:")
	build := &domain.Build{Project: "acme:catalog", Number: 12}

	if err := s.Put(context.Background(), build, ".lib-1.0-Promote-sent", nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !server.Exists("ci:acme%3Acatalog:12:.lib-1.0-Promote-sent") {
		t.Fatalf("expected value key, got %v", server.Keys())
	}
	if !server.Exists("ci:acme%3Acatalog:12") {
		t.Fatalf("expected index key, got %v", server.Keys())
	}
	if NewEntryStore(s.client, "").prefix != DefaultPrefix {
		t.Fatalf("expected default prefix")
	}
}

func TestEntryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")
	build := &domain.Build{Project: "lib-core", Number: 3}
	key := ".lib-core-1.2.0-PostModule-to-resend"

	if _, err := s.Get(ctx, build, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, build, key, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := s.Get(ctx, build, key)
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected get %q %v", data, err)
	}
	ok, err := s.Exists(ctx, build, key)
	if err != nil || !ok {
		t.Fatalf("expected key to exist, got %v %v", ok, err)
	}
	if err := s.Delete(ctx, build, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, build, key); ok {
		t.Fatalf("expected key to be deleted")
	}
	keys, err := s.Keys(ctx, build, domain.PendingSuffix)
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected empty index after delete, got %v %v", keys, err)
	}
	if err := s.Delete(ctx, build, key); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}
}

func TestEntryStoreKeysKeepsColonsAndScopes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")
	build := &domain.Build{Project: "app", Number: 1}
	other := &domain.Build{Project: "app", Number: 12}
	colliding := &domain.Build{Project: "app:1", Number: 2}

	for _, key := range []string{".org.acme:lib-core-1.2.0-Promote-to-resend", ".b-1.0-PostModule-to-resend", ".b-1.0-PostModule-sent"} {
		if err := s.Put(ctx, build, key, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if err := s.Put(ctx, other, ".c-1.0-PostModule-to-resend", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, colliding, ".d-1.0-PostModule-to-resend", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}

	keys, err := s.Keys(ctx, build, domain.PendingSuffix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := []string{".b-1.0-PostModule-to-resend", ".org.acme:lib-core-1.2.0-Promote-to-resend"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keys)
		}
	}
}

func TestLedgerListsPendingWithColonInModuleName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, "")
	l, err := ledger.New(ledger.Dependencies{Store: s})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	build := &domain.Build{Project: "app", Number: 1}
	project := &domain.Project{Name: "app", Builds: []*domain.Build{build}}
	n := domain.Notification{Action: domain.ActionPromote, ModuleName: "org.acme:lib-core", ModuleVersion: "1.2.0"}

	l.SavePending(ctx, n.Identity(), n, build)

	var listed []domain.Notification
	for _, got := range l.ListPending(ctx, project) {
		listed = append(listed, got)
	}
	if len(listed) != 1 || listed[0].ModuleName != "org.acme:lib-core" {
		t.Fatalf("expected pending record to be listed, got %+v", listed)
	}
}
