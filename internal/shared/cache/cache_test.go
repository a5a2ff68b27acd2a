package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGetDel(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Total int `json:"total"`
	}
	if err := c.SetJSON(ctx, "k", payload{Total: 3}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	ok, err := c.GetJSON(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Total != 3 {
		t.Fatalf("unexpected value %+v", got)
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.GetJSON(ctx, "k", &got); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.SetJSON(ctx, "k", 1, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var v int
	if ok, _ := c.GetJSON(ctx, "k", &v); !ok {
		t.Fatalf("expected hit before expiry")
	}
	now = now.Add(time.Minute)
	if ok, _ := c.GetJSON(ctx, "k", &v); ok {
		t.Fatalf("expected miss at expiry")
	}
}

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions("redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options %+v", opt)
	}

	opt, err = ParseOptions("localhost:6379")
	if err != nil || opt.Addr != "localhost:6379" {
		t.Fatalf("unexpected bare addr result %+v %v", opt, err)
	}

	if _, err := ParseOptions(" "); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
