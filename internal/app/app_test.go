package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tyB-or/weibu-ipSearch/internal/config"
	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/export"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/settings"
	"github.com/tyB-or/weibu-ipSearch/internal/view"
)

type fixedClient map[string]string

func (c fixedClient) Lookup(_ context.Context, _ string, ip, _ string) (*domain.LookupResponse, error) {
	payload, ok := c[ip]
	if !ok {
		return &domain.LookupResponse{ResponseCode: -1, VerboseMsg: "Invalid IP"}, nil
	}
	return domain.NewSingleResponse(ip, json.RawMessage(payload)), nil
}

var testPayloads = fixedClient{
	"8.8.8.8": `{"is_malicious":false,"confidence_level":"low","severity":"info","basic":{"carrier":"Google","location":{"country":"美国"}}}`,
	"1.1.1.1": `{"is_malicious":true,"confidence_level":"high","severity":"high","basic":{"carrier":"Cloudflare","location":{"country":"中国","province":"安徽"}},"judgments":["Scanner"]}`,
}

func newHeadlessSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Options{
		Client:   testPayloads,
		Settings: settings.New(settings.NewMemoryStore()),
		Lang:     "zh",
		Pace:     time.Millisecond,
	})
	s.SetAPIKey("test-key", false)
	return s
}

func TestParseFlags(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	t.Setenv(headlessEnv, "")

	opts, err := parseFlags([]string{"-headless", "-filter", "confidence=high", "-sort", "ip:desc", "-lang", "EN", "8.8.8.8", "1.1.1.1"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !opts.headless {
		t.Fatal("expected headless mode")
	}
	if opts.filter != "confidence=high" || opts.sort != "ip:desc" {
		t.Fatalf("unexpected view flags: %+v", opts)
	}
	if opts.lang != "en" {
		t.Fatalf("lang = %q, want en", opts.lang)
	}
	if opts.ips != "8.8.8.8\n1.1.1.1" {
		t.Fatalf("ips = %q", opts.ips)
	}

	if _, err := parseFlags([]string{"-no-such-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestParseFlagsHelp(t *testing.T) {
	_, err := parseFlags([]string{"-h"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
}

func TestParseFlagsEnvironment(t *testing.T) {
	t.Run("api key from env when flag empty", func(t *testing.T) {
		t.Setenv(apiKeyEnv, "env-key")
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatal(err)
		}
		if opts.apiKey != "env-key" {
			t.Fatalf("apiKey = %q, want env-key", opts.apiKey)
		}
	})

	t.Run("flag overrides env", func(t *testing.T) {
		t.Setenv(apiKeyEnv, "env-key")
		opts, err := parseFlags([]string{"-key", "flag-key"})
		if err != nil {
			t.Fatal(err)
		}
		if opts.apiKey != "flag-key" {
			t.Fatalf("apiKey = %q, want flag-key", opts.apiKey)
		}
	})

	t.Run("headless from env", func(t *testing.T) {
		t.Setenv(headlessEnv, "true")
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatal(err)
		}
		if !opts.headless {
			t.Fatal("expected headless from environment")
		}
	})
}

func TestReadBool(t *testing.T) {
	cases := map[string]bool{"1": true, "TRUE": true, " yes ": true, "on": true, "0": false, "": false, "nope": false}
	for value, want := range cases {
		t.Setenv("IPSEARCH_TEST_BOOL", value)
		if got := readBool("IPSEARCH_TEST_BOOL"); got != want {
			t.Fatalf("readBool(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestRunHeadlessQueriesAndExports(t *testing.T) {
	s := newHeadlessSession(t)
	exportPath := filepath.Join(t.TempDir(), "out.json")

	opts := options{
		ips:           "8.8.8.8 1.1.1.1 10.0.0.1",
		maliciousOnly: true,
		exportPath:    exportPath,
	}

	var out bytes.Buffer
	if err := runHeadless(context.Background(), s, opts, &out); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("result count = %d, want 2", s.Len())
	}
	report := out.String()
	if !strings.Contains(report, "1.1.1.1") || strings.Contains(report, "8.8.8.8") {
		t.Fatalf("malicious-only report should list only 1.1.1.1:\n%s", report)
	}
	if !strings.Contains(report, "仅显示恶意IP") {
		t.Fatalf("report misses the malicious-only line:\n%s", report)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if !strings.Contains(string(data), `"8.8.8.8"`) {
		t.Fatalf("full export should contain every result:\n%s", data)
	}
}

func TestRunHeadlessLoadAndFilter(t *testing.T) {
	dir := t.TempDir()
	source := newHeadlessSession(t)
	source.SetInput("8.8.8.8 1.1.1.1")
	events, err := source.StartQuery(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	drain(source, events)
	saved, err := source.Export(filepath.Join(dir, "saved.json"), export.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}

	s := newHeadlessSession(t)
	var out bytes.Buffer
	opts := options{loadPath: saved, filter: "location=foreign", sort: "ip"}
	if err := runHeadless(context.Background(), s, opts, &out); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	if s.Filter() != (view.Filter{Category: view.CategoryLocation, Value: "foreign"}) {
		t.Fatalf("filter = %+v", s.Filter())
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0].IP != "8.8.8.8" {
		t.Fatalf("visible rows = %+v", rows)
	}
}

func TestRunHeadlessErrors(t *testing.T) {
	cases := []struct {
		name string
		opts options
	}{
		{name: "no input", opts: options{}},
		{name: "bad filter", opts: options{ips: "8.8.8.8", filter: "colour=red"}},
		{name: "bad sort", opts: options{ips: "8.8.8.8", sort: "nope"}},
		{name: "missing load file", opts: options{loadPath: filepath.Join(t.TempDir(), "missing.json")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newHeadlessSession(t)
			if err := runHeadless(context.Background(), s, tc.opts, &bytes.Buffer{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestStatisticsOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	opts := statisticsOptions(cfg)
	if opts.TopN != cfg.Statistics.TopN {
		t.Fatalf("TopN = %d, want %d", opts.TopN, cfg.Statistics.TopN)
	}
	if len(opts.Geography.CountryMarkers) == 0 || opts.Geography.CountryMarkers[0] != "中国" {
		t.Fatalf("country markers = %v", opts.Geography.CountryMarkers)
	}
}
