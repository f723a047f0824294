package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds catalog engine settings. Load from env; call
// LoadEnvFile(".env") first to use a .env file.
type Config struct {
	// Paths
	DBPath       string // SQLite catalog database
	SnapshotPath string // JSON snapshot of the merged channel set ("" = skip)
	CacheDir     string // fetched-document cache
	SourcesFile  string // YAML source descriptors ("" = built-in defaults)

	// Fetch
	CacheTTL         time.Duration // fetched document freshness window
	FetchTimeout     time.Duration // per network call
	FetchConcurrency int           // sources fetched in parallel
	PerHostRequests  int           // concurrent requests against one host

	// Directory sources
	DirectoryMinSize int64 // candidates below this many bytes are skipped
	DirectoryTopN    int   // how many of the largest candidates to fetch

	// Validation
	ProbeTimeout     time.Duration
	ProbeConcurrency int
	ProbeBatchSize   int           // sub-batch size for very large selections
	ProbeCacheFile   string        // JSON probe-result cache; "" = disabled
	ProbeCacheTTL    time.Duration // how long a probe result is considered fresh
	ProbeRatePerSec  float64       // probes per second across all workers; 0 = unlimited

	// Gateway
	ListenAddr string
}

// Load reads config from environment with defaults suitable for a single-host
// deployment.
func Load() *Config {
	c := &Config{
		DBPath:           getEnv("CHANCAT_DB", "./catalog.db"),
		SnapshotPath:     os.Getenv("CHANCAT_SNAPSHOT"),
		CacheDir:         getEnv("CHANCAT_CACHE_DIR", "./cache"),
		SourcesFile:      os.Getenv("CHANCAT_SOURCES_FILE"),
		CacheTTL:         getEnvDuration("CHANCAT_CACHE_TTL", 12*time.Hour),
		FetchTimeout:     getEnvDuration("CHANCAT_FETCH_TIMEOUT", 60*time.Second),
		FetchConcurrency: getEnvInt("CHANCAT_FETCH_CONCURRENCY", 5),
		PerHostRequests:  getEnvInt("CHANCAT_PER_HOST_REQUESTS", 4),
		DirectoryMinSize: getEnvInt64("CHANCAT_DIR_MIN_SIZE", 1<<20),
		DirectoryTopN:    getEnvInt("CHANCAT_DIR_TOP_N", 10),
		ProbeTimeout:     getEnvDuration("CHANCAT_PROBE_TIMEOUT", 8*time.Second),
		ProbeConcurrency: getEnvInt("CHANCAT_PROBE_CONCURRENCY", 10),
		ProbeBatchSize:   getEnvInt("CHANCAT_PROBE_BATCH_SIZE", 200),
		ProbeCacheFile:   os.Getenv("CHANCAT_PROBE_CACHE_FILE"),
		ProbeCacheTTL:    getEnvDuration("CHANCAT_PROBE_CACHE_TTL", 4*time.Hour),
		ProbeRatePerSec:  getEnvFloat("CHANCAT_PROBE_RATE", 0),
		ListenAddr:       getEnv("CHANCAT_LISTEN", ":8080"),
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 5
	}
	if c.PerHostRequests <= 0 {
		c.PerHostRequests = 4
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 60 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 12 * time.Hour
	}
	if c.DirectoryTopN <= 0 {
		c.DirectoryTopN = 10
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 10
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 8 * time.Second
	}
	if c.ProbeBatchSize <= 0 {
		c.ProbeBatchSize = 200
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

// getEnvDuration parses "90s", "4h", or a bare number of seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return defaultVal
}
