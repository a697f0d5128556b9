package main

import (
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/internal/config"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    model.TimeRange
		wantErr bool
	}{
		{in: "1s-2s", want: model.TimeRange{Start: time.Second, End: 2 * time.Second}},
		{in: "0s-1.5s", want: model.TimeRange{End: 1500 * time.Millisecond}},
		{in: " 500ms-1m ", want: model.TimeRange{Start: 500 * time.Millisecond, End: time.Minute}},
		{in: "2s", wantErr: true},
		{in: "2s-1s", wantErr: true},
		{in: "a-2s", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRange(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStudioConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.CatalogDir = "memory"
	cfg.Export.Container = "opus"
	cfg.Playback.Device = "clock"
	cfg.S3.Bucket = "clips"

	sc, err := studioConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sc.CatalogDir != "" {
		t.Errorf("memory catalog dir = %q, want empty", sc.CatalogDir)
	}
	if sc.Export.Container != model.ContainerOpus {
		t.Errorf("container = %q", sc.Export.Container)
	}
	if !sc.SilentPlayback || sc.S3.Bucket != "clips" {
		t.Errorf("studio config = %+v", sc)
	}

	cfg.Export.Container = "wav"
	if _, err := studioConfig(cfg, nil); err == nil {
		t.Error("expected error for unsupported container")
	}
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "list", "probe", "crop", "cut", "insert"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not found: %v", name, err)
		}
	}
}
