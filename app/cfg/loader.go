package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/tweets.db" description:"SQLite database file"`
	MediaDir string `long:"media-dir" env:"MEDIA_DIR" default:"./data/media" description:"Directory for mirrored media files"`

	// HTTP server
	Port      string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	UsersFile string `long:"users-file" env:"USERS_FILE" description:"YAML file with additional Basic auth users (optional)"`
	BaseURL   string `long:"base-url" env:"BASE_URL" description:"Public URL used for links in category feeds (default http://localhost:<port>)"`

	// Fetching and mirroring
	UserAgent         string        `long:"user-agent" env:"USER_AGENT" default:"WhatsApp/2.24.1.84" description:"User agent string for HTTP requests"`
	FetchTimeout      time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10s" description:"Timeout for a single page or media fetch"`
	FetchDelay        time.Duration `long:"fetch-delay" env:"FETCH_DELAY" default:"2s" description:"Minimum delay between page fetches"`
	MirrorConcurrency int           `long:"mirror-concurrency" env:"MIRROR_CONCURRENCY" default:"4" description:"Parallel media downloads per post"`

	// Background maintenance
	WorkerCount      int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	RemirrorSchedule string `long:"remirror-schedule" env:"REMIRROR_SCHEDULE" default:"@every 6h" description:"Cron schedule for retrying failed media mirrors (empty disables)"`
	SweepSchedule    string `long:"sweep-schedule" env:"SWEEP_SCHEDULE" default:"@daily" description:"Cron schedule for removing unreferenced media (empty disables)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogJSON  bool   `long:"log-json" env:"LOG_JSON" description:"Write logs as JSON"`
}

func Load() (*Cfg, error) {
	cfg, err := Parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

// Parse builds a Cfg from command-line args and the environment. It returns
// nil, nil when help was requested.
func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.MirrorConcurrency < 1 {
		return nil, fmt.Errorf("mirror concurrency must be at least 1, got %d", raw.MirrorConcurrency)
	}
	if raw.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", raw.WorkerCount)
	}

	return &Cfg{
		DBPath:            raw.DBPath,
		MediaDir:          raw.MediaDir,
		Port:              raw.Port,
		UsersFile:         raw.UsersFile,
		BaseURL:           cmp.Or(raw.BaseURL, "http://localhost:"+raw.Port),
		UserAgent:         raw.UserAgent,
		FetchTimeout:      raw.FetchTimeout,
		FetchDelay:        raw.FetchDelay,
		MirrorConcurrency: raw.MirrorConcurrency,
		WorkerCount:       raw.WorkerCount,
		RemirrorSchedule:  raw.RemirrorSchedule,
		SweepSchedule:     raw.SweepSchedule,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		LogJSON:           raw.LogJSON,
		Version:           GetVersion(),
	}, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
