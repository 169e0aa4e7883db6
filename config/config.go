package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Configuration is the dispatcher's env-bound settings, read once at
// startup by FromEnv. Every setting comes from the environment so the
// process can be reconfigured without a rebuild or a mounted file.
type Configuration struct {
	ApiPort string
	LogPath string

	Database string // "sqlite3" or "postgres"
	DbURL    string
	CacheURL string

	JwtSecret string

	AIAPIKey string

	WhatsAppBaseURL  string
	WhatsAppInstance string
	WhatsAppAPIKey   string

	ChatwootBaseURL     string
	ChatwootAccountID   string
	ChatwootAccessToken string

	WorkerPoolMin       int
	WorkerPoolMax       int
	MaxConcurrentUsers  int
	QueueSoftCap        int

	CoalesceWindow   time.Duration
	CoalesceMaxWait  time.Duration

	RateUserPerMinute   int
	RateIPPerMinute     int
	RateGlobalPerMinute int

	FollowUpStartHour int
	FollowUpEndHour   int
	FollowUpTZ        string

	MigrationModeUntil time.Time

	OTelExporterOTLPEndpoint string
}

// FromEnv reads the full Configuration from the process environment,
// applying non-empty/non-zero defaults for anything unset.
func FromEnv() Configuration {
	c := Configuration{
		ApiPort:  getenv("API_PORT", "8080"),
		LogPath:  getenv("LOG_PATH", "logs/server.log"),
		Database: getenv("DB_DRIVER", "sqlite3"),
		DbURL:    getenv("DB_URL", "dispatcher.db"),
		CacheURL: getenv("CACHE_URL", ""),

		JwtSecret: getenv("JWT_SECRET", "CHANGE_ME"),
		AIAPIKey:  getenv("AI_API_KEY", ""),

		WhatsAppBaseURL:  getenv("WHATSAPP_BASE_URL", ""),
		WhatsAppInstance: getenv("WHATSAPP_INSTANCE", ""),
		WhatsAppAPIKey:   getenv("WHATSAPP_API_KEY", ""),

		ChatwootBaseURL:     getenv("CHATWOOT_BASE_URL", ""),
		ChatwootAccountID:   getenv("CHATWOOT_ACCOUNT_ID", ""),
		ChatwootAccessToken: getenv("CHATWOOT_ACCESS_TOKEN", ""),

		WorkerPoolMin:      getenvInt("WORKER_POOL_MIN", 2),
		WorkerPoolMax:      getenvInt("WORKER_POOL_MAX", 8),
		MaxConcurrentUsers: getenvInt("MAX_CONCURRENT_USERS", 500),
		QueueSoftCap:       getenvInt("QUEUE_SOFT_CAP", 500),

		CoalesceWindow:  getenvMillis("COALESCE_WINDOW_MS", 5*time.Second),
		CoalesceMaxWait: getenvMillis("COALESCE_MAX_WAIT_MS", 10*time.Second),

		RateUserPerMinute:   getenvInt("RATE_USER_PER_MINUTE", 10),
		RateIPPerMinute:     getenvInt("RATE_IP_PER_MINUTE", 50),
		RateGlobalPerMinute: getenvInt("RATE_GLOBAL_PER_MINUTE", 1000),

		FollowUpStartHour: getenvInt("FOLLOWUP_START_HOUR", 9),
		FollowUpEndHour:   getenvInt("FOLLOWUP_END_HOUR", 21),
		FollowUpTZ:        getenv("FOLLOWUP_TZ", "America/Argentina/Cordoba"),

		OTelExporterOTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if c.WorkerPoolMin <= 0 {
		c.WorkerPoolMin = 2
	}
	if c.WorkerPoolMax < c.WorkerPoolMin {
		c.WorkerPoolMax = c.WorkerPoolMin
	}

	if raw := os.Getenv("MIGRATION_MODE_UNTIL"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			log.Printf("config: invalid MIGRATION_MODE_UNTIL %q, ignoring: %v", raw, err)
		} else {
			c.MigrationModeUntil = t
		}
	}

	if _, err := time.LoadLocation(c.FollowUpTZ); err != nil {
		log.Printf("config: unknown FOLLOWUP_TZ %q, falling back to UTC: %v", c.FollowUpTZ, err)
		c.FollowUpTZ = "UTC"
	}

	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", k, v, def)
		return def
	}
	return n
}

func getenvMillis(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid duration for %s=%q, using default %s", k, v, def)
		return def
	}
	return time.Duration(n) * time.Millisecond
}
