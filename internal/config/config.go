// Package config loads voiceclip settings from a TOML file, a .env file and
// VOICECLIP_* environment variables, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

const (
	defaultConfigPath = "~/.config/voiceclip/config.toml"
	defaultDataDir    = "~/.local/share/voiceclip"
	defaultListen     = "127.0.0.1:7490"

	envPrefix = "VOICECLIP_"
)

// Duration is a time.Duration read from strings such as "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// DataDir holds the clip files.
	DataDir string `toml:"data_dir" validate:"required"`
	// CatalogDir holds the badger catalog. Empty means DataDir/catalog,
	// "memory" keeps the catalog in memory.
	CatalogDir  string `toml:"catalog_dir"`
	Listen      string `toml:"listen" validate:"required,hostname_port"`
	Development bool   `toml:"development"`
	Workers     int    `toml:"workers" validate:"gte=1,lte=64"`

	FFmpeg   FFmpeg   `toml:"ffmpeg"`
	Export   Export   `toml:"export"`
	Record   Record   `toml:"record"`
	Playback Playback `toml:"playback"`
	S3       S3       `toml:"s3"`
}

type FFmpeg struct {
	FFmpegPath  string   `toml:"ffmpeg_path"`
	FFprobePath string   `toml:"ffprobe_path"`
	FFplayPath  string   `toml:"ffplay_path"`
	StopTimeout Duration `toml:"stop_timeout"`
}

type Export struct {
	Container  string   `toml:"container" validate:"oneof=m4a aac ogg opus mp3"`
	Bitrate    int      `toml:"bitrate" validate:"gte=8000,lte=512000"`
	SampleRate int      `toml:"sample_rate" validate:"oneof=8000 16000 22050 44100 48000"`
	Channels   int      `toml:"channels" validate:"oneof=1 2"`
	Timeout    Duration `toml:"timeout"`
}

type Record struct {
	InputFormat string `toml:"input_format" validate:"required"`
	InputDevice string `toml:"input_device" validate:"required"`
}

type Playback struct {
	// Device is "ffplay" for audible output or "clock" for a silent
	// position-only device.
	Device       string   `toml:"device" validate:"oneof=ffplay clock"`
	TickInterval Duration `toml:"tick_interval"`
}

type S3 struct {
	Endpoint        string `toml:"endpoint" validate:"omitempty,url"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Prefix          string `toml:"prefix"`
	PublicURL       string `toml:"public_url" validate:"omitempty,url"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir: defaultDataDir,
		Listen:  defaultListen,
		Workers: 4,
		FFmpeg: FFmpeg{
			StopTimeout: Duration(5 * time.Second),
		},
		Export: Export{
			Container:  "m4a",
			Bitrate:    128000,
			SampleRate: 44100,
			Channels:   1,
			Timeout:    Duration(2 * time.Minute),
		},
		Record:   defaultRecord(),
		Playback: Playback{Device: "ffplay", TickInterval: Duration(50 * time.Millisecond)},
	}
}

func defaultRecord() Record {
	if runtime.GOOS == "darwin" {
		return Record{InputFormat: "avfoundation", InputDevice: ":0"}
	}
	return Record{InputFormat: "pulse", InputDevice: "default"}
}

// Load reads path (or the default location when empty), applies .env and
// environment overrides and validates the result. A missing file is not an
// error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env next to the working directory; absence is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.DataDir = mustExpand(cfg.DataDir)
	if cfg.CatalogDir == "" {
		cfg.CatalogDir = filepath.Join(cfg.DataDir, "catalog")
	} else if cfg.CatalogDir != "memory" {
		cfg.CatalogDir = mustExpand(cfg.CatalogDir)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and returns every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out error
	for _, fe := range verrs {
		out = multierr.Append(out, fmt.Errorf("config %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return out
}

// envVars maps VOICECLIP_* names to the fields they override.
func envVars(c *Config) map[string]any {
	return map[string]any{
		"DATA_DIR":             &c.DataDir,
		"CATALOG_DIR":          &c.CatalogDir,
		"LISTEN":               &c.Listen,
		"DEVELOPMENT":          &c.Development,
		"WORKERS":              &c.Workers,
		"FFMPEG_PATH":          &c.FFmpeg.FFmpegPath,
		"FFPROBE_PATH":         &c.FFmpeg.FFprobePath,
		"FFPLAY_PATH":          &c.FFmpeg.FFplayPath,
		"EXPORT_CONTAINER":     &c.Export.Container,
		"EXPORT_BITRATE":       &c.Export.Bitrate,
		"RECORD_INPUT_FORMAT":  &c.Record.InputFormat,
		"RECORD_INPUT_DEVICE":  &c.Record.InputDevice,
		"PLAYBACK_DEVICE":      &c.Playback.Device,
		"S3_ENDPOINT":          &c.S3.Endpoint,
		"S3_REGION":            &c.S3.Region,
		"S3_BUCKET":            &c.S3.Bucket,
		"S3_ACCESS_KEY_ID":     &c.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &c.S3.SecretAccessKey,
		"S3_PREFIX":            &c.S3.Prefix,
		"S3_PUBLIC_URL":        &c.S3.PublicURL,
	}
}

func applyEnv(c *Config) error {
	var errs error
	for name, target := range envVars(c) {
		raw, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		switch p := target.(type) {
		case *string:
			*p = raw
		case *int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				continue
			}
			*p = n
		case *bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				continue
			}
			*p = b
		}
	}
	return errs
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
