package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected Default(), got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.BitrateBps = 20_000_000
	cfg.KnownServers = []KnownServer{{Cookie: "abc", Name: "living room", Port: 9757}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BitrateBps != cfg.BitrateBps {
		t.Fatalf("BitrateBps = %d, want %d", loaded.BitrateBps, cfg.BitrateBps)
	}
	if len(loaded.KnownServers) != 1 || loaded.KnownServers[0].Name != "living room" {
		t.Fatalf("KnownServers = %+v", loaded.KnownServers)
	}
}

func TestLoadOrCreateCookieIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookie")

	first, err := LoadOrCreateCookie(path)
	if err != nil {
		t.Fatalf("LoadOrCreateCookie: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("cookie length = %d, want 32", len(first))
	}

	second, err := LoadOrCreateCookie(path)
	if err != nil {
		t.Fatalf("LoadOrCreateCookie (reload): %v", err)
	}
	if second != first {
		t.Fatalf("cookie changed across reload: %q != %q", first, second)
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	sub := w.Subscribe()

	cfg.BitrateBps = 99_000_000
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	select {
	case got := <-sub:
		if got.BitrateBps != 99_000_000 {
			t.Fatalf("BitrateBps = %d, want 99_000_000", got.BitrateBps)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}
