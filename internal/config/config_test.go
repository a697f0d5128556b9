package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if want := filepath.Join(home, ".local/share/voiceclip"); cfg.DataDir != want {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, want)
	}
	if cfg.CatalogDir != filepath.Join(cfg.DataDir, "catalog") {
		t.Errorf("CatalogDir = %q", cfg.CatalogDir)
	}
	if cfg.Export.Timeout.Std() != 2*time.Minute {
		t.Errorf("export timeout = %v", cfg.Export.Timeout.Std())
	}
	if cfg.Record.InputFormat == "" || cfg.Record.InputDevice == "" {
		t.Errorf("record defaults missing: %+v", cfg.Record)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	path := writeConfig(t, `
data_dir = "`+dir+`"
catalog_dir = "memory"
listen = "0.0.0.0:9000"
workers = 8

[export]
container = "mp3"
bitrate = 96000
timeout = "45s"

[playback]
device = "clock"
tick_interval = "100ms"

[s3]
bucket = "clips"
endpoint = "https://s3.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir || cfg.CatalogDir != "memory" {
		t.Errorf("dirs = %q, %q", cfg.DataDir, cfg.CatalogDir)
	}
	if cfg.Workers != 8 || cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("workers=%d listen=%q", cfg.Workers, cfg.Listen)
	}
	if cfg.Export.Container != "mp3" || cfg.Export.Bitrate != 96000 || cfg.Export.Timeout.Std() != 45*time.Second {
		t.Errorf("export = %+v", cfg.Export)
	}
	// untouched keys keep their defaults
	if cfg.Export.SampleRate != 44100 || cfg.Export.Channels != 1 {
		t.Errorf("export defaults lost: %+v", cfg.Export)
	}
	if cfg.Playback.Device != "clock" || cfg.Playback.TickInterval.Std() != 100*time.Millisecond {
		t.Errorf("playback = %+v", cfg.Playback)
	}
	if cfg.S3.Bucket != "clips" {
		t.Errorf("s3 = %+v", cfg.S3)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `workers = 2`)
	t.Setenv("VOICECLIP_WORKERS", "6")
	t.Setenv("VOICECLIP_S3_BUCKET", "from-env")
	t.Setenv("VOICECLIP_DEVELOPMENT", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 6 || cfg.S3.Bucket != "from-env" || !cfg.Development {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDotEnvIsRead(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VOICECLIP_LISTEN=127.0.0.1:8123\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets variables for the rest of the process
	t.Setenv("VOICECLIP_LISTEN", "")
	os.Unsetenv("VOICECLIP_LISTEN")

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8123" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
}

func TestBadEnvValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VOICECLIP_WORKERS", "many")
	if _, err := Load(writeConfig(t, "")); err == nil || !strings.Contains(err.Error(), "VOICECLIP_WORKERS") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	cfg.Export.Channels = 6
	cfg.Playback.Device = "speaker"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"workers", "channels", "device"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestParseError(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(writeConfig(t, "workers = [")); err == nil {
		t.Fatal("expected parse error")
	}
}
