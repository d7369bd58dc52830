package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestPDFCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := New(rdb, 10*time.Minute)

	if _, ok, err := c.Get(ctx, "abc"); ok || err != nil {
		t.Fatalf("Get on empty cache = (%v, %v)", ok, err)
	}
	if err := c.Set(ctx, "abc", []byte("%PDF-1.7")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if rdb.ttls["webpdf:pdf:abc"] != 10*time.Minute {
		t.Fatalf("ttl = %v", rdb.ttls["webpdf:pdf:abc"])
	}
	data, ok, err := c.Get(ctx, "abc")
	if err != nil || !ok || string(data) != "%PDF-1.7" {
		t.Fatalf("Get = (%q, %v, %v)", data, ok, err)
	}
}

func TestPDFCache_DefaultTTL(t *testing.T) {
	rdb := newFakeRedis()
	if err := New(rdb, 0).Set(context.Background(), "k", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if rdb.ttls["webpdf:pdf:k"] != time.Hour {
		t.Fatalf("ttl = %v, want 1h", rdb.ttls["webpdf:pdf:k"])
	}
}

func TestPDFCache_PropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	rdb := newFakeRedis()
	rdb.err = boom
	c := New(rdb, time.Minute)

	if _, _, err := c.Get(context.Background(), "k"); !errors.Is(err, boom) {
		t.Fatalf("Get err = %v", err)
	}
	if err := c.Set(context.Background(), "k", []byte("x")); !errors.Is(err, boom) {
		t.Fatalf("Set err = %v", err)
	}
}
