package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/support"
)

type Config struct {
	API struct {
		Endpoint  string `json:"endpoint"`
		Language  string `json:"language"`
		TimeoutMs uint32 `json:"timeout_ms"`
		Proxy     string `json:"proxy"`
	} `json:"api"`

	Query struct {
		PaceMs uint32 `json:"pace_ms"`
	} `json:"query"`

	Statistics struct {
		HomeCountryMarkers []string `json:"home_country_markers"`
		HomeRegionMarkers  []string `json:"home_region_markers"`
		TopN               int      `json:"top_n"`
	} `json:"statistics"`

	Export struct {
		Encoding string `json:"encoding"`
		Dir      string `json:"dir"`
	} `json:"export"`

	Store struct {
		Backend    string `json:"backend"`
		SQLitePath string `json:"sqlite_path"`
	} `json:"store"`

	GeoLite struct {
		CountryDB     string `json:"country_db"`
		ASNDB         string `json:"asn_db"`
		LicenseKey    string `json:"license_key"`
		AutoUpdate    bool   `json:"auto_update"`
		UpdateTimer   Timer  `json:"update_timer"`
		LastUpdatedAt string `json:"last_updated_at,omitempty"`
	} `json:"geolite"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

const defaultSettingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue  atomic.Value
	settingsPath atomic.Value
	configMu     sync.Mutex
)

func init() {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic("config: embedded defaults are invalid: " + err.Error())
	}
	configValue.Store(cfg)
	settingsPath.Store(defaultSettingsFilePath)
	SetDurations()
}

// SetSettingsPath moves the settings file, mainly for tests and -config.
func SetSettingsPath(path string) {
	if path == "" {
		path = defaultSettingsFilePath
	}
	settingsPath.Store(path)
}

func SettingsPath() string {
	return settingsPath.Load().(string)
}

// Defaults returns the embedded configuration.
func Defaults() Config {
	var cfg Config
	_ = json.Unmarshal(defaultConfig, &cfg)
	return cfg
}

// ReadSettings loads the settings file, writing the defaults first when it
// does not exist, then applies environment overrides.
func ReadSettings() error {
	path := SettingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Error reading settings file", "error", err)
			return err
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Error("Error creating directory for settings file", "error", err)
			return err
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			log.Error("Error writing default settings file", "error", err)
			return err
		}
		data = defaultConfig
	}

	// Start from the defaults so fields missing in older files keep a value.
	newConfig := Defaults()
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file", "error", err)
		return err
	}

	applyEnvOverrides(&newConfig)

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		return err
	}

	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.API.Language = support.GetEnv("IPSEARCH_LANG", cfg.API.Language)
	cfg.API.Proxy = support.GetEnv("IPSEARCH_PROXY", cfg.API.Proxy)
	cfg.API.Endpoint = support.GetEnv("IPSEARCH_ENDPOINT", cfg.API.Endpoint)
	cfg.Store.Backend = support.GetEnv("IPSEARCH_STORE", cfg.Store.Backend)
	cfg.GeoLite.LicenseKey = support.GetEnv("IPSEARCH_GEOLITE_KEY", cfg.GeoLite.LicenseKey)

	if pace := support.GetEnvInt("IPSEARCH_PACE_MS", -1); pace >= 0 {
		cfg.Query.PaceMs = uint32(pace)
	}
}

// SetConfig applies cfg and writes it to the settings file.
func SetConfig(newConfig Config) error {
	return applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, source: "local"})
}

func MarkGeoLiteUpdated(ts time.Time) error {
	cfg := GetConfig()
	cfg.GeoLite.LastUpdatedAt = ts.UTC().Format(time.RFC3339)
	return applyConfigUpdate(cfg, configUpdateOptions{persistToFile: true, source: "geolite"})
}

type configUpdateOptions struct {
	persistToFile bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	newConfig.API.Language = strings.ToLower(strings.TrimSpace(newConfig.API.Language))
	configValue.Store(newConfig)
	SetDurations()

	var errs []error
	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration", "error", err)
			errs = append(errs, err)
		} else if err := os.WriteFile(SettingsPath(), data, 0o644); err != nil {
			log.Error("Error writing new configuration to file", "error", err)
			errs = append(errs, err)
		}
	}

	log.Debug("Configuration applied", "source", opts.source)
	return errors.Join(errs...)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}
