package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	baseURLVar          = "APPGROWTH_BASE_URL"
	usernameVar         = "APPGROWTH_USERNAME"
	passwordVar         = "APPGROWTH_PASSWORD"
	requestTimeoutVar   = "APPGROWTH_REQUEST_TIMEOUT"
	maxLoginAttemptsVar = "APPGROWTH_MAX_LOGIN_ATTEMPTS"
	requestPauseVar     = "APPGROWTH_REQUEST_PAUSE"
	dataDirVar          = "APPGROWTH_DATA_DIR"
	logLevelVar         = "APPGROWTH_LOG_LEVEL"
	listenAddrVar       = "APPGROWTH_LISTEN_ADDR"
)

const (
	DefaultBaseURL          = "https://app.appgrowth.com"
	DefaultRequestTimeout   = 15 * time.Second
	DefaultMaxLoginAttempts = 3
	DefaultRequestPause     = 500 * time.Millisecond
	DefaultDataDir          = "./.appgrowth-data"
	DefaultLogLevel         = "info"
	DefaultListenAddr       = ":8080"
)

// ErrMissingCredentials is returned by Validate when the username or password
// is unset. Callers treat it as fatal.
var ErrMissingCredentials = errors.New("APPGROWTH_USERNAME and APPGROWTH_PASSWORD must be set")

type Config struct {
	BaseURL          string
	Username         string
	Password         string
	RequestTimeout   time.Duration
	MaxLoginAttempts int
	RequestPause     time.Duration
	DataDir          string
	LogLevel         string
	ListenAddr       string
}

// Load reads an optional .env file from the working directory and then the
// process environment. Values already set in the environment win.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		BaseURL:          GetEnv(baseURLVar, DefaultBaseURL),
		Username:         GetEnv(usernameVar, ""),
		Password:         GetEnv(passwordVar, ""),
		RequestTimeout:   GetDuration(requestTimeoutVar, DefaultRequestTimeout),
		MaxLoginAttempts: GetInt(maxLoginAttemptsVar, DefaultMaxLoginAttempts),
		RequestPause:     GetDuration(requestPauseVar, DefaultRequestPause),
		DataDir:          GetEnv(dataDirVar, DefaultDataDir),
		LogLevel:         GetEnv(logLevelVar, DefaultLogLevel),
		ListenAddr:       GetEnv(listenAddrVar, DefaultListenAddr),
	}
}

func (c Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt falls back to the default for unparsable or non-positive values.
func GetInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil || n < 1 {
		return defaultValue
	}
	return n
}

// GetDuration accepts Go duration strings ("15s") or a plain number of
// seconds ("15").
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
