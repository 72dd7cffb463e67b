package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "time"     // time parses scheduler durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    // Scheduler policy knobs.  All optional with product defaults, so a
    // minimal .env still boots a correctly behaving scheduler.
    HoldTTL           time.Duration // HOLD_TTL_HOURS: default lifetime of a hold (48h)
    HoldMaxExtensions int           // HOLD_MAX_EXTENSIONS: extension cap per hold (2)
    SweepInterval     time.Duration // SWEEP_INTERVAL: how often the sweep runs (2m)
    NoticeHorizon     time.Duration // EXPIRY_NOTICE_HORIZON: expiring-soon lead time (6h)
    ClaimGrace        time.Duration // CLAIM_GRACE: how long a promoted entry may stay unclaimed (24h)
    TenureSaturation  int           // SCORE_TENURE_SATURATION_MONTHS: months to max experience bonus (12)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),             // environment (dev/test/prod)
        Port:           must("APP_PORT"),            // port to bind the HTTP server
        DBUser:         must("DB_USER"),             // database user
        DBPass:         os.Getenv("DB_PASS"),        // database password (empty allowed)
        DBHost:         must("DB_HOST"),             // database host
        DBPort:         must("DB_PORT"),             // database port
        DBName:         must("DB_NAME"),             // database name
        JWTSecret:      must("JWT_SECRET"),          // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),      // bcrypt cost factor

        HoldTTL:           time.Duration(optInt("HOLD_TTL_HOURS", 48)) * time.Hour,
        HoldMaxExtensions: optInt("HOLD_MAX_EXTENSIONS", 2),
        SweepInterval:     optDuration("SWEEP_INTERVAL", 2*time.Minute),
        NoticeHorizon:     optDuration("EXPIRY_NOTICE_HORIZON", 6*time.Hour),
        ClaimGrace:        optDuration("CLAIM_GRACE", 24*time.Hour),
        TenureSaturation:  optInt("SCORE_TENURE_SATURATION_MONTHS", 12),
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// optInt reads an optional integer env var, falling back to def when the
// variable is unset.  A set-but-invalid value is still fatal: a typo in a
// policy knob should not silently run with the default.
func optInt(key string, def int) int {
    s, ok := os.LookupEnv(key)
    if !ok || s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// optDuration reads an optional Go duration env var ("2m", "6h"), falling
// back to def when unset.
func optDuration(key string, def time.Duration) time.Duration {
    s, ok := os.LookupEnv(key)
    if !ok || s == "" {
        return def
    }
    d, err := time.ParseDuration(s)
    if err != nil || d <= 0 {
        log.Fatalf("invalid duration for %s: %q", key, s)
    }
    return d
}
