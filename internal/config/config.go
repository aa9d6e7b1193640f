package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
	"time"    // time parses interval variables
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required variables (ports, database coordinates)
// abort startup when missing; engine tuning variables fall back to the
// defaults the engine was designed around.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AMQPURL string // RabbitMQ URL for the notification feed (optional)

	RoomIDs      []string // rooms served by this deployment
	SeatsPerRoom int      // seats per room, seat IDs are 1..N

	InactivityTimeout time.Duration // idle time before a session is evicted
	LeaveGrace        time.Duration // consumable retention after a leave
	ChatHold          time.Duration // CHATTING countdown
	IdleAfter         time.Duration // inactivity before IDLE
	RestoreCooldown   time.Duration // suppression window for restore broadcasts
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),       // environment (dev/test/prod)
		Port:   must("APP_PORT"),      // port to bind the HTTP server
		DBUser: must("DB_USER"),       // database user
		DBPass: os.Getenv("DB_PASS"),  // database password (empty allowed)
		DBHost: must("DB_HOST"),       // database host
		DBPort: must("DB_PORT"),       // database port
		DBName: must("DB_NAME"),       // database name

		AMQPURL: os.Getenv("RABBITMQ_URL"), // broker URL (empty -> local default)

		RoomIDs:      splitList(getenv("CAFE_ROOMS", "lobby")),
		SeatsPerRoom: atoi(getenv("CAFE_SEATS_PER_ROOM", "12")),

		InactivityTimeout: parseDur(getenv("CAFE_INACTIVITY_TIMEOUT", "10m")),
		LeaveGrace:        parseDur(getenv("CAFE_LEAVE_GRACE", "5m")),
		ChatHold:          parseDur(getenv("CAFE_CHAT_HOLD", "10s")),
		IdleAfter:         parseDur(getenv("CAFE_IDLE_AFTER", "30s")),
		RestoreCooldown:   parseDur(getenv("CAFE_RESTORE_COOLDOWN", "1s")),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions shared with redis.go, ratelimit.go and cache.go.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
