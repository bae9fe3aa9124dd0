package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestInitRedis_RejectsBadURL(t *testing.T) {
	if _, err := InitRedis(""); err == nil {
		t.Error("InitRedis(\"\") succeeded")
	}
	if _, err := InitRedis("not a url"); err == nil {
		t.Error("InitRedis(bad) succeeded")
	}
}

// Needs a live server: REDIS_TEST_URL=redis://localhost:6379/15
func TestPassLock(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	rdb, err := InitRedis(url)
	if err != nil {
		t.Fatalf("InitRedis() error = %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	lock := NewPassLock(rdb, time.Minute)
	lock.Prefix = "dailybot-test:" + uuid.NewString() + ":"

	release, ok, err := lock.Acquire(ctx, "close")
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v", ok, err)
	}

	_, ok, err = lock.Acquire(ctx, "close")
	if err != nil || ok {
		t.Fatalf("second Acquire() = %v, %v; want held", ok, err)
	}

	// A different pass name is independent.
	releaseOpen, ok, err := lock.Acquire(ctx, "open")
	if err != nil || !ok {
		t.Fatalf("Acquire(open) = %v, %v", ok, err)
	}
	defer releaseOpen(ctx)

	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	release2, ok, err := lock.Acquire(ctx, "close")
	if err != nil || !ok {
		t.Fatalf("Acquire after release = %v, %v", ok, err)
	}
	release2(ctx)
}
