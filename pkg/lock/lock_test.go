package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	l, err := AcquireVPC(context.Background(), dir, "prod", time.Second)
	if err != nil {
		t.Fatalf("AcquireVPC: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prod.lock")); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireVPC(context.Background(), dir, "prod", time.Second)
	if err != nil {
		t.Fatalf("first AcquireVPC: %v", err)
	}
	defer first.Release()

	_, err = AcquireVPC(context.Background(), dir, "prod", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected second acquire to time out while first holds the lock")
	}
}

func TestAcquireGlobal(t *testing.T) {
	dir := t.TempDir()
	l, err := AcquireGlobal(context.Background(), dir, time.Second)
	if err != nil {
		t.Fatalf("AcquireGlobal: %v", err)
	}
	defer l.Release()
	if _, err := os.Stat(filepath.Join(dir, globalLockName)); err != nil {
		t.Fatalf("expected global lock file to exist: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l, err := AcquireVPC(context.Background(), dir, "prod", time.Second)
	if err != nil {
		t.Fatalf("AcquireVPC: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release should be a no-op: %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireVPC(context.Background(), dir, "prod", time.Second)
	if err != nil {
		t.Fatalf("first AcquireVPC: %v", err)
	}
	defer first.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AcquireVPC(ctx, dir, "prod", time.Second)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
