package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment.
type Config struct {
	Port               string
	CORSAllowedOrigins string

	ChatStoreDriver string
	DBPath          string
	DBDebug         bool
	MongoURI        string
	MongoDatabase   string
	HistoryLimit    int

	ScreenSharePolicy string

	WSRateLimit  float64
	WSRateBurst  int
	WSSendBuffer int

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:               getString("PORT", "8000"),
		CORSAllowedOrigins: getString("CORS_ALLOWED_ORIGINS", "*"),
		ChatStoreDriver:    strings.ToLower(getString("CHAT_STORE_DRIVER", "sqlite")),
		DBPath:             getString("DB_PATH", "chat.db"),
		MongoURI:           getString("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getString("MONGO_DATABASE", "pinch"),
		ScreenSharePolicy:  strings.ToLower(getString("SCREEN_SHARE_POLICY", "preempt")),
	}

	var err error
	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getInt("CHAT_HISTORY_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.WSRateLimit, err = getFloat("WS_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.WSRateBurst, err = getInt("WS_RATE_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.WSSendBuffer, err = getInt("WS_SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}
	if cfg.WSSendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", cfg.WSSendBuffer)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("45s") or a plain number of seconds.
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
