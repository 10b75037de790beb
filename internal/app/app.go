package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/tyB-or/weibu-ipSearch/internal/app/bootstrap"
	"github.com/tyB-or/weibu-ipSearch/internal/app/version"
	"github.com/tyB-or/weibu-ipSearch/internal/config"
	"github.com/tyB-or/weibu-ipSearch/internal/session"
	"github.com/tyB-or/weibu-ipSearch/internal/statistics"
	"github.com/tyB-or/weibu-ipSearch/internal/threatbook"
	"github.com/tyB-or/weibu-ipSearch/internal/tui"
)

const (
	apiKeyEnv     = "THREATBOOK_API_KEY"
	headlessEnv   = "IPSEARCH_HEADLESS"
	defaultLogDir = "data"
	logFileName   = "ipsearch.log"
)

type options struct {
	configPath    string
	headless      bool
	inputFile     string
	apiKey        string
	remember      bool
	lang          string
	filter        string
	maliciousOnly bool
	sort          string
	exportPath    string
	exportView    bool
	encoding      string
	loadPath      string
	store         string
	updateGeoLite bool
	debug         bool
	showVersion   bool

	// ips is whatever text was left after the flags.
	ips string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ipsearch", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", "", "Path of the settings file (default data/settings.json)")
	fs.BoolVar(&opts.headless, "headless", false, "Run one query without the dashboard and print the results")
	fs.StringVar(&opts.inputFile, "file", "", "Read IPs from a text file")
	fs.StringVar(&opts.apiKey, "key", "", "ThreatBook API key (defaults to $"+apiKeyEnv+" or the remembered key)")
	fs.BoolVar(&opts.remember, "remember", false, "Remember the API key for later runs")
	fs.StringVar(&opts.lang, "lang", "", "Response language: zh or en")
	fs.StringVar(&opts.filter, "filter", "", "Facet filter as category=value, e.g. confidence=high")
	fs.BoolVar(&opts.maliciousOnly, "malicious-only", false, "Only show malicious IPs")
	fs.StringVar(&opts.sort, "sort", "", "Sort column, optionally with :desc, e.g. severity:desc")
	fs.StringVar(&opts.exportPath, "export", "", "Write the results to a .csv or .json file")
	fs.BoolVar(&opts.exportView, "view", false, "Export the filtered overview instead of the full results")
	fs.StringVar(&opts.encoding, "encoding", "", "CSV encoding: utf-8-sig, utf-8, gb18030, gbk or gb2312")
	fs.StringVar(&opts.loadPath, "load", "", "Load results from a JSON export instead of querying")
	fs.StringVar(&opts.store, "store", "", "Settings store backend: sqlite, postgres, redis or memory")
	fs.BoolVar(&opts.updateGeoLite, "update-geolite", false, "Download the GeoLite databases before starting")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.ips = strings.Join(fs.Args(), "\n")
	opts.apiKey = resolveString(opts.apiKey, apiKeyEnv)
	if !opts.headless {
		opts.headless = readBool(headlessEnv)
	}
	if opts.lang != "" {
		opts.lang = threatbook.NormalizeLang(opts.lang)
	}
	return opts, nil
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showVersion {
		fmt.Println(version.Get())
		return nil
	}

	log.SetLevel(log.InfoLevel)
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	}

	config.SetSettingsPath(opts.configPath)
	if err := config.ReadSettings(); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.headless {
		logFile, err := redirectLog(defaultLogDir)
		if err != nil {
			return err
		}
		defer logFile.Close()
	}

	rt, err := bootstrap.Setup(ctx, bootstrap.Options{
		UpdateGeoLite: opts.updateGeoLite,
		StoreBackend:  opts.store,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("error closing runtime", "error", err)
		}
	}()

	s := newSession(rt, opts)
	if err := s.LoadSettings(ctx); err != nil {
		log.Warn("Failed to load saved settings", "error", err)
	}
	if opts.apiKey != "" {
		s.SetAPIKey(opts.apiKey, opts.remember)
	}

	if opts.headless {
		return runHeadless(ctx, s, opts, os.Stdout)
	}

	if opts.ips != "" {
		s.SetInput(opts.ips)
	}
	if opts.inputFile != "" {
		if _, _, err := s.ImportFile(opts.inputFile); err != nil {
			log.Warn("Failed to import input file", "error", err)
		}
	}

	dash := tui.New(s, tui.Options{
		Geography: statisticsOptions(rt.Config).Geography,
		ExportDir: rt.Config.Export.Dir,
		Version:   version.Get().BuildVersion,
	})
	return dash.Run(ctx)
}

func newSession(rt *bootstrap.Runtime, opts options) *session.Session {
	cfg := rt.Config

	lang := cfg.API.Language
	if opts.lang != "" {
		lang = opts.lang
	}
	encoding := cfg.Export.Encoding
	if opts.encoding != "" {
		encoding = opts.encoding
	}

	return session.New(session.Options{
		Client:     rt.Client,
		Settings:   rt.Settings,
		Lang:       threatbook.NormalizeLang(lang),
		Pace:       config.GetQueryPace(),
		Statistics: statisticsOptions(cfg),
		Enricher:   rt.Enricher(),
		Encoding:   encoding,
	})
}

func statisticsOptions(cfg config.Config) statistics.Options {
	return statistics.Options{
		Geography: statistics.Geography{
			CountryMarkers: cfg.Statistics.HomeCountryMarkers,
			RegionMarkers:  cfg.Statistics.HomeRegionMarkers,
		},
		TopN: cfg.Statistics.TopN,
	}
}

// redirectLog moves logging to a file so it does not draw over the dashboard.
func redirectLog(dir string) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(file)
	return file, nil
}

// resolveString prefers the flag value, then the environment.
func resolveString(flagValue, env string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(env))
}

func readBool(env string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(env))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
