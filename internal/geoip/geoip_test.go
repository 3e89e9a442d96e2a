package geoip

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenErrors(t *testing.T) {
	if _, err := Open("", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty path err = %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"), ""); err == nil {
		t.Fatalf("missing file accepted")
	}
	junk := filepath.Join(t.TempDir(), "junk.mmdb")
	if err := os.WriteFile(junk, []byte("not a maxmind database"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(junk, ""); err == nil {
		t.Fatalf("junk file accepted")
	}
}

func TestNilLocator(t *testing.T) {
	var l *Locator
	if _, _, err := l.Locate(net.ParseIP("8.8.8.8")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Locate err = %v", err)
	}
	if _, err := l.Metadata(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Metadata err = %v", err)
	}
	if _, _, err := l.LocateString("not-an-ip"); !errors.Is(err, ErrBadIP) {
		t.Fatalf("LocateString err = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
}

func TestPickName(t *testing.T) {
	names := map[string]string{"en": "Germany", "de": "Deutschland"}
	tests := []struct{ lang, want string }{
		{"de", "Deutschland"},
		{"fr", "Germany"},
		{"en", "Germany"},
	}
	for _, tt := range tests {
		if got := pickName(names, tt.lang); got != tt.want {
			t.Errorf("pickName(%s) = %q, want %q", tt.lang, got, tt.want)
		}
	}
	if pickName(nil, "en") != "" {
		t.Fatalf("nil names")
	}
}
