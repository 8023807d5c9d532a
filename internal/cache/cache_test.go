package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sports-arb-scanner/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClientDisabled(t *testing.T) {
	client, err := NewClient(context.Background(), config.CacheConfig{})
	if err != nil || client != nil {
		t.Fatalf("empty addr should disable redis, got %v %v", client, err)
	}
}

func TestNewClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.CacheConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
}

func TestResponseCacheRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	c := NewResponseCache(client, "test")
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "/sports"); err != nil || ok {
		t.Fatalf("empty cache should miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "/sports", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, "/sports")
	if err != nil || !ok || string(got) != "[]" {
		t.Fatalf("expected hit, got %q ok=%v err=%v", got, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "/sports"); ok {
		t.Fatal("entry should expire after ttl")
	}
}

func TestDeduplicatorCooldown(t *testing.T) {
	mr, client := newRedis(t)
	d := NewDeduplicator(client, 10*time.Minute, "test")
	ctx := context.Background()

	first, err := d.ShouldAlert(ctx, "evt|margin|A@X,B@Y")
	if err != nil || !first {
		t.Fatalf("first alert should pass, got %v %v", first, err)
	}
	second, err := d.ShouldAlert(ctx, "evt|margin|A@X,B@Y")
	if err != nil || second {
		t.Fatalf("repeat inside cooldown should be suppressed, got %v %v", second, err)
	}
	other, _ := d.ShouldAlert(ctx, "evt2|margin|A@X,B@Y")
	if !other {
		t.Fatal("different key should pass")
	}

	mr.FastForward(11 * time.Minute)
	again, _ := d.ShouldAlert(ctx, "evt|margin|A@X,B@Y")
	if !again {
		t.Fatal("alert should pass again after cooldown")
	}
}

func TestNilDeduplicatorAllows(t *testing.T) {
	var d *Deduplicator
	ok, err := d.ShouldAlert(context.Background(), "k")
	if err != nil || !ok {
		t.Fatal("nil deduplicator should allow alerts")
	}
}

func TestDeduplicatorRelease(t *testing.T) {
	_, client := newRedis(t)
	d := NewDeduplicator(client, 10*time.Minute, "test")
	ctx := context.Background()

	if ok, _ := d.ShouldAlert(ctx, "evt|margin|A@X,B@Y"); !ok {
		t.Fatal("first alert should pass")
	}
	if err := d.Release(ctx, "evt|margin|A@X,B@Y"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := d.ShouldAlert(ctx, "evt|margin|A@X,B@Y"); !ok {
		t.Fatal("released key should be claimable again")
	}

	var nilDedup *Deduplicator
	if err := nilDedup.Release(ctx, "k"); err != nil {
		t.Fatalf("nil release should be a no-op, got %v", err)
	}
}
