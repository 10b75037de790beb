package geolite

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oschwald/geoip2-golang"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

func archive(t *testing.T, name string, body []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "GeoLite_20240101/" + name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestUpdaterDownloadsEditions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("license_key") != "lic" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("edition_id") {
		case "GeoLite2-ASN":
			_, _ = w.Write(archive(t, ASNFileName, []byte("asn-data")))
		case "GeoLite2-Country":
			_, _ = w.Write(archive(t, CountryFileName, []byte("country-data")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	updater := &Updater{LicenseKey: "lic", Dir: dir, DownloadURL: server.URL, HTTPClient: server.Client()}
	if err := updater.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	for name, want := range map[string]string{ASNFileName: "asn-data", CountryFileName: "country-data"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestUpdaterErrors(t *testing.T) {
	if err := (&Updater{Dir: t.TempDir()}).Update(context.Background()); !errors.Is(err, ErrNoLicenseKey) {
		t.Fatalf("missing key error = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	updater := &Updater{LicenseKey: "lic", Dir: t.TempDir(), DownloadURL: server.URL, HTTPClient: server.Client()}
	if err := updater.Update(context.Background()); err == nil {
		t.Fatal("expected error for unauthorized download")
	}
}

func TestOpenWithoutDatabases(t *testing.T) {
	dir := t.TempDir()
	resolver, err := Open(filepath.Join(dir, CountryFileName), filepath.Join(dir, ASNFileName), "zh")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if resolver != nil {
		t.Fatal("expected nil resolver when no database exists")
	}

	// A nil resolver is a no-op.
	rec := domain.ReputationRecord{IP: "8.8.8.8"}
	resolver.Enrich(&rec)
	if rec.Basic.Location.Country != "" {
		t.Fatal("nil resolver modified the record")
	}
	if err := resolver.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsCorruptDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), CountryFileName)
	if err := os.WriteFile(path, []byte("not an mmdb"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path, "", "en"); err == nil {
		t.Fatal("expected error for corrupt database")
	}
}

func TestLocalizedName(t *testing.T) {
	names := map[string]string{"en": "China", "zh-CN": "中国"}
	if got := localizedName(names, "zh"); got != "中国" {
		t.Fatalf("zh name = %q", got)
	}
	if got := localizedName(names, "en"); got != "China" {
		t.Fatalf("en name = %q", got)
	}
	if got := localizedName(map[string]string{"en": "Japan"}, "zh"); got != "Japan" {
		t.Fatalf("fallback name = %q", got)
	}
}

func TestApplyFallbackLeavesAPIFieldsAlone(t *testing.T) {
	var country geoip2.Country
	country.Country.IsoCode = "US"
	country.Country.Names = map[string]string{"en": "United States", "zh-CN": "美国"}
	asn := &geoip2.ASN{AutonomousSystemNumber: 15169, AutonomousSystemOrganization: "GOOGLE"}

	rec := domain.ReputationRecord{IP: "8.8.8.8"}
	applyFallback(&rec, &country, asn, "zh")

	if rec.Basic.Location.Country != "" || rec.Basic.Carrier != "" || rec.ASN.Number != 0 {
		t.Fatalf("API fields were modified: %+v", rec)
	}
	want := domain.GeoFallback{Country: "美国", CountryCode: "US", ASNNumber: 15169, ASNOrg: "GOOGLE"}
	if rec.Fallback != want {
		t.Fatalf("fallback = %+v, want %+v", rec.Fallback, want)
	}
	if !strings.Contains(rec.Detail(), "GeoLite") {
		t.Fatalf("detail does not show the fallback:\n%s", rec.Detail())
	}

	applyFallback(&rec, nil, nil, "zh")
	if !rec.Fallback.IsZero() {
		t.Fatalf("fallback not cleared: %+v", rec.Fallback)
	}
}
