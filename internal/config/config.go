package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string
	JWTSecret string

	// PlaybackBaseURL points at the external "now playing" API.
	PlaybackBaseURL string

	// ReportInterval is how often each client samples its own playback.
	ReportInterval time.Duration
	// BackstopInterval is the fan-out's corrective poll of the participant
	// list, covering gaps in the notification stream.
	BackstopInterval time.Duration
	// TransitionDelay is the pause between a view's "entering transition"
	// signal and the new data being applied.
	TransitionDelay time.Duration
	// PruneAfter is how long a participant may stay silent before the
	// fan-out drops its row. Zero disables pruning.
	PruneAfter time.Duration
}

func Load() *Config {
	return &Config{
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "musicjam"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		PlaybackBaseURL:  getEnv("PLAYBACK_API_URL", "https://api.spotify.com/v1"),
		ReportInterval:   getDuration("REPORT_INTERVAL", 5*time.Second),
		BackstopInterval: getDuration("BACKSTOP_INTERVAL", 3*time.Second),
		TransitionDelay:  getDuration("TRANSITION_DELAY", 150*time.Millisecond),
		PruneAfter:       getDuration("PRUNE_AFTER", 10*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
