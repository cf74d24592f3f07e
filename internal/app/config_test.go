package app

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadConfig(t *testing.T) {
	keys := []string{"HOME_SERVER", "VALID_SERVERS", "STORE_BACKEND", "FIREBASE_PROJECT_ID", "CACHE_TTL", "MAX_UPLOAD_MB"}
	originals := make(map[string]string)
	for _, k := range keys {
		originals[k] = os.Getenv(k)
	}

	// Cleanup function
	defer func() {
		for k, v := range originals {
			setOrUnset(k, v)
		}
	}()

	reset := func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	}

	t.Run("ValidConfiguration", func(t *testing.T) {
		reset()
		os.Setenv("HOME_SERVER", "101")
		os.Setenv("VALID_SERVERS", "101, 102,103")
		os.Setenv("CACHE_TTL", "5m")

		config, err := LoadConfig()

		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if config.HomeServer != 101 {
			t.Errorf("Expected HomeServer 101, got %d", config.HomeServer)
		}

		if len(config.ValidServers) != 3 || config.ValidServers[2] != 103 {
			t.Errorf("Expected ValidServers [101 102 103], got %v", config.ValidServers)
		}

		if config.CacheTTL != 5*time.Minute {
			t.Errorf("Expected CacheTTL 5m, got %v", config.CacheTTL)
		}

		if config.StoreBackend != StoreBackendMemory {
			t.Errorf("Expected memory backend by default, got '%s'", config.StoreBackend)
		}

		if config.MaxUploadBytes != 32<<20 {
			t.Errorf("Expected default MaxUploadBytes 32MiB, got %d", config.MaxUploadBytes)
		}
	})

	t.Run("ValidServersDefaultToHome", func(t *testing.T) {
		reset()
		os.Setenv("HOME_SERVER", "7")

		config, err := LoadConfig()

		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if len(config.ValidServers) != 1 || config.ValidServers[0] != 7 {
			t.Errorf("Expected ValidServers [7], got %v", config.ValidServers)
		}
	})

	t.Run("MissingHomeServer", func(t *testing.T) {
		reset()

		_, err := LoadConfig()

		if err == nil {
			t.Fatal("Expected error for missing HOME_SERVER, got nil")
		}

		if !strings.Contains(err.Error(), "HOME_SERVER") {
			t.Errorf("Expected error message to contain 'HOME_SERVER', got '%s'", err.Error())
		}
	})

	t.Run("FirestoreNeedsProject", func(t *testing.T) {
		reset()
		os.Setenv("HOME_SERVER", "101")
		os.Setenv("STORE_BACKEND", "firestore")

		_, err := LoadConfig()

		if err == nil {
			t.Fatal("Expected error for missing FIREBASE_PROJECT_ID, got nil")
		}

		if !strings.Contains(err.Error(), "FIREBASE_PROJECT_ID") {
			t.Errorf("Expected error message to contain 'FIREBASE_PROJECT_ID', got '%s'", err.Error())
		}
	})

	t.Run("BadServerList", func(t *testing.T) {
		reset()
		os.Setenv("HOME_SERVER", "101")
		os.Setenv("VALID_SERVERS", "101,abc")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("Expected error for invalid VALID_SERVERS, got nil")
		}
	})
}

func TestIsValidTitle(t *testing.T) {
	testCases := []struct {
		title string
		valid bool
	}{
		{"start", true},
		{"final", true},
		{"preseason", true},
		{"2024-05-01", true},
		{"2024-13-01", false},
		{"2024-5-1", false},
		{"", false},
		{"midseason", false},
	}

	for _, tc := range testCases {
		if got := IsValidTitle(tc.title); got != tc.valid {
			t.Errorf("IsValidTitle(%q) = %v, want %v", tc.title, got, tc.valid)
		}
	}
}

func TestSetupEnvironment(t *testing.T) {
	// Save original environment
	originalENV := os.Getenv("ENV")
	originalLOGLEVEL := os.Getenv("LOGLEVEL")
	originalLevel := zerolog.GlobalLevel()

	// Cleanup function
	defer func() {
		setOrUnset("ENV", originalENV)
		setOrUnset("LOGLEVEL", originalLOGLEVEL)
		zerolog.SetGlobalLevel(originalLevel)
	}()

	testCases := []struct {
		name           string
		env            string
		logLevel       string
		expectedLevel  zerolog.Level
	}{
		{"ProductionDebug", "production", "debug", zerolog.DebugLevel},
		{"ProductionInfo", "production", "info", zerolog.InfoLevel},
		{"ProductionWarn", "production", "warn", zerolog.WarnLevel},
		{"ProductionWarning", "production", "warning", zerolog.WarnLevel},
		{"ProductionError", "production", "error", zerolog.ErrorLevel},
		{"ProductionFatal", "production", "fatal", zerolog.FatalLevel},
		{"ProductionPanic", "production", "panic", zerolog.PanicLevel},
		{"ProductionDisabled", "production", "disabled", zerolog.Disabled},
		{"ProductionDefault", "production", "", zerolog.WarnLevel},
		{"ProductionUnknown", "production", "unknown", zerolog.InfoLevel},
		{"DevelopmentDebug", "development", "debug", zerolog.DebugLevel},
		{"DevelopmentDefault", "development", "", zerolog.InfoLevel},
		{"DevelopmentUnknown", "", "unknown", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setOrUnset("ENV", tc.env)
			setOrUnset("LOGLEVEL", tc.logLevel)

			SetupEnvironment()

			if zerolog.GlobalLevel() != tc.expectedLevel {
				t.Errorf("Expected log level %v, got %v", tc.expectedLevel, zerolog.GlobalLevel())
			}
		})
	}
}

// Helper function to set environment variable or unset if value is empty
func setOrUnset(key, value string) {
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
}