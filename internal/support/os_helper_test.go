package support

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("IPSEARCH_TEST_ENV", "value")
	if got := GetEnv("IPSEARCH_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("GetEnv returned %s, want value", got)
	}

	if got := GetEnv("IPSEARCH_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %s, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("IPSEARCH_TEST_INT", "42")
	if got := GetEnvInt("IPSEARCH_TEST_INT", 7); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}

	t.Setenv("IPSEARCH_TEST_INT_BAD", "forty-two")
	if got := GetEnvInt("IPSEARCH_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("GetEnvInt with invalid value returned %d, want 7", got)
	}
}

func TestReadTextFileStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ips.txt")
	if err := os.WriteFile(path, []byte("\ufeff8.8.8.8\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := ReadTextFile(path)
	if err != nil {
		t.Fatalf("ReadTextFile returned error: %v", err)
	}
	if got != "8.8.8.8\n" {
		t.Fatalf("ReadTextFile = %q, want %q", got, "8.8.8.8\n")
	}
}
