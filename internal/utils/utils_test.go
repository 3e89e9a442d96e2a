package utils

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"pyxgrid/internal/config"
)

func TestDisabledBackends(t *testing.T) {
	ctx := context.Background()
	db, err := OpenPostgres(ctx, config.PostgresConfig{})
	if db != nil || err != nil {
		t.Fatalf("disabled postgres = %v, %v", db, err)
	}
	rc, err := OpenRedis(ctx, config.RedisConfig{})
	if rc != nil || err != nil {
		t.Fatalf("disabled redis = %v, %v", rc, err)
	}
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "keys", "server.key")
	if err := EnsureSelfSignedCert(cert, key, "pyxgrid.local"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(cert, key); err != nil {
		t.Fatalf("load pair: %v", err)
	}
	before, _ := os.ReadFile(cert)
	if err := EnsureSelfSignedCert(cert, key, "other"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	after, _ := os.ReadFile(cert)
	if string(before) != string(after) {
		t.Fatalf("existing certificate was replaced")
	}
}
