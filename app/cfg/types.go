package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath   string
	MediaDir string

	// HTTP server
	Port      string
	UsersFile string
	BaseURL   string

	// Fetching and mirroring
	UserAgent         string
	FetchTimeout      time.Duration
	FetchDelay        time.Duration
	MirrorConcurrency int

	// Background maintenance
	WorkerCount      int
	RemirrorSchedule string
	SweepSchedule    string

	// Application metadata
	Timezone string
	Debug    bool
	LogJSON  bool
	Version  string
}
