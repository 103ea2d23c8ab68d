package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration-valued settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for TTLs.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	IdentitySalt      string        // salt mixed into device-identifier hashes (optional, see identity package)
	KeySalt           string        // salt for backup-key hashing; falls back to IdentitySalt when unset
	AdminToken        string        // static operator token exchanged for an admin session
	AdminJWTSecret    string        // secret used to sign admin session tokens
	AdminTTLMin       int           // admin session token time-to-live in minutes
	MigrationTokenTTL time.Duration // validity window of migration tokens
	ModerationURL     string        // base URL of the text moderation service (optional, fails open)
	DebugIdentity     bool          // expose the identity resolution debug endpoint
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	keySalt := os.Getenv("KEY_SALT")
	if keySalt == "" {
		keySalt = os.Getenv("IDENTITY_SALT")
	}
	return Config{
		Env:               must("APP_ENV"),                             // environment (dev/test/prod)
		Port:              must("APP_PORT"),                            // port to bind the HTTP server
		DBUser:            must("DB_USER"),                             // database user
		DBPass:            os.Getenv("DB_PASS"),                        // database password (empty allowed)
		DBHost:            must("DB_HOST"),                             // database host
		DBPort:            must("DB_PORT"),                             // database port
		DBName:            must("DB_NAME"),                             // database name
		IdentitySalt:      os.Getenv("IDENTITY_SALT"),                  // may be empty; identity package warns once
		KeySalt:           keySalt,                                     // backup-key hash salt
		AdminToken:        must("ADMIN_TOKEN"),                         // static operator credential
		AdminJWTSecret:    must("ADMIN_JWT_SECRET"),                    // secret for admin session tokens
		AdminTTLMin:       envInt("ADMIN_TOKEN_TTL_MIN", 60),           // admin session lifetime
		MigrationTokenTTL: envDur("MIGRATION_TOKEN_TTL", 24*time.Hour), // migration token validity window
		ModerationURL:     os.Getenv("MODERATION_URL"),                 // empty disables the external check
		DebugIdentity:     envBool("DEBUG_IDENTITY", false),            // identity debug endpoint gate
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt reads an integer environment variable, falling back to the default
// when the variable is unset or malformed.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

// envBool reads a boolean environment variable with a default.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return def
}

// envDur reads a duration environment variable with a default.
func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
