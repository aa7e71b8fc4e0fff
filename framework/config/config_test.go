package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/km-arc/go-persistence/framework/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func setEnv(t *testing.T, key, val string) {
	t.Helper()
	t.Setenv(key, val) // automatically restored after test
}

// clearEnv blanks the keys Load reads; blank counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "APP_DEBUG", "APP_PORT", "APP_PATH",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD",
		"PERSISTENCE_CONFIG",
	} {
		setEnv(t, key, "")
	}
}

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := config.Load(writeEnvFile(t, ""))

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"App.Name", cfg.App.Name, "persistence"},
		{"App.Env", cfg.App.Env, "local"},
		{"App.Port", cfg.App.Port, "8000"},
		{"App.Path", cfg.App.Path, "."},
		{"DB.Driver", cfg.DB.Driver, "mysql"},
		{"DB.Host", cfg.DB.Host, "127.0.0.1"},
		{"DB.Port", cfg.DB.Port, "3306"},
		{"DB.Username", cfg.DB.Username, "root"},
		{"PersistenceFile", cfg.PersistenceFile, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, "APP_NAME", "MyApp")
	setEnv(t, "APP_ENV", "production")
	setEnv(t, "DB_DATABASE", "mydb")
	setEnv(t, "PERSISTENCE_CONFIG", "/etc/app/persistence.yml")

	cfg := config.Load(writeEnvFile(t, ""))

	if cfg.App.Name != "MyApp" {
		t.Errorf("App.Name: got %q want %q", cfg.App.Name, "MyApp")
	}
	if cfg.App.Env != "production" {
		t.Errorf("App.Env: got %q want %q", cfg.App.Env, "production")
	}
	if cfg.DB.Database != "mydb" {
		t.Errorf("DB.Database: got %q want %q", cfg.DB.Database, "mydb")
	}
	if cfg.PersistenceFile != "/etc/app/persistence.yml" {
		t.Errorf("PersistenceFile: got %q", cfg.PersistenceFile)
	}
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("APP_PORT")

	cfg := config.Load(writeEnvFile(t, "APP_PORT=9100\n"))
	if cfg.App.Port != "9100" {
		t.Errorf("App.Port: got %q want %q", cfg.App.Port, "9100")
	}
}

func TestLoad_AppDebugFalse(t *testing.T) {
	setEnv(t, "APP_DEBUG", "false")
	cfg := config.Load(writeEnvFile(t, ""))
	if cfg.App.Debug {
		t.Error("expected App.Debug to be false")
	}
}

// ── Get / GetInt / GetBool ───────────────────────────────────────────────────

func TestGet_ReturnsFallback(t *testing.T) {
	os.Unsetenv("MISSING_KEY")
	if got := config.Get("MISSING_KEY", "fallback"); got != "fallback" {
		t.Errorf("got %q want %q", got, "fallback")
	}
}

func TestGetInt_ReturnsFallbackOnInvalid(t *testing.T) {
	setEnv(t, "SOME_INT", "notanint")
	if got := config.GetInt("SOME_INT", 99); got != 99 {
		t.Errorf("got %d want %d", got, 99)
	}
	setEnv(t, "SOME_INT", "42")
	if got := config.GetInt("SOME_INT", 0); got != 42 {
		t.Errorf("got %d want %d", got, 42)
	}
}

func TestGetBool_True(t *testing.T) {
	for _, val := range []string{"true", "1", "True", "TRUE"} {
		setEnv(t, "BOOL_KEY", val)
		if !config.GetBool("BOOL_KEY", false) {
			t.Errorf("expected true for %q", val)
		}
	}
}
