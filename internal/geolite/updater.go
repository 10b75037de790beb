package geolite

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultDownloadURL = "https://download.maxmind.com/app/geoip_download"
	userAgent          = "ipsearch-geolite-updater/1.0"
)

var ErrNoLicenseKey = errors.New("geolite: license key is not configured")

var updateGroup singleflight.Group

type downloadTarget struct {
	editionID string
	filename  string
}

var downloadTargets = []downloadTarget{
	{editionID: "GeoLite2-ASN", filename: ASNFileName},
	{editionID: "GeoLite2-Country", filename: CountryFileName},
}

// Updater downloads the GeoLite editions into Dir.
type Updater struct {
	LicenseKey  string
	Dir         string
	DownloadURL string
	HTTPClient  *http.Client
}

// Update fetches both editions. Concurrent calls share one download.
func (u *Updater) Update(ctx context.Context) error {
	_, err, _ := updateGroup.Do(u.Dir, func() (interface{}, error) {
		key := strings.TrimSpace(u.LicenseKey)
		if key == "" {
			return nil, ErrNoLicenseKey
		}
		if err := os.MkdirAll(u.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}

		for _, target := range downloadTargets {
			if err := u.downloadEdition(ctx, key, target); err != nil {
				return nil, err
			}
			log.Info("GeoLite edition updated", "edition", target.editionID)
		}
		return nil, nil
	})
	return err
}

func (u *Updater) client() *http.Client {
	if u.HTTPClient != nil {
		return u.HTTPClient
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

func (u *Updater) downloadEdition(ctx context.Context, key string, target downloadTarget) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.buildDownloadURL(key, target.editionID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.client().Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", target.editionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: unexpected status %d: %s", target.editionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gzipReader, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: open gzip: %w", target.editionID, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read tar: %w", target.editionID, err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != target.filename {
			continue
		}

		if err := writeToFile(filepath.Join(u.Dir, target.filename), tarReader); err != nil {
			return fmt.Errorf("%s: write file: %w", target.editionID, err)
		}
		return nil
	}

	return fmt.Errorf("%s: mmdb file not found in archive", target.editionID)
}

// writeToFile replaces destPath atomically.
func writeToFile(destPath string, data io.Reader) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func (u *Updater) buildDownloadURL(key, edition string) string {
	base := u.DownloadURL
	if base == "" {
		base = DefaultDownloadURL
	}
	query := url.Values{}
	query.Set("edition_id", edition)
	query.Set("license_key", key)
	query.Set("suffix", "tar.gz")
	return base + "?" + query.Encode()
}
