package main

import (
	"testing"

	"github.com/careloop/triagelog/internal/config"
)

func TestMaskKey(t *testing.T) {
	cases := map[string]string{
		"":                 "not set",
		"short":            "set",
		"12345678":         "set",
		"gsk_abcdefgh1234": "gsk_...1234",
	}
	for key, want := range cases {
		if got := maskKey(key); got != want {
			t.Fatalf("maskKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestOpenStore_SelectsDriver(t *testing.T) {
	tmp := t.TempDir()

	cfg := &config.Config{Store: config.StoreConfig{Driver: "file", Path: tmp + "/data.json"}}
	st, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore(file) error: %v", err)
	}
	st.Close()

	cfg.Store = config.StoreConfig{Driver: "sqlite", Path: tmp + "/events.db"}
	st, err = openStore(cfg)
	if err != nil {
		t.Fatalf("openStore(sqlite) error: %v", err)
	}
	st.Close()
}
