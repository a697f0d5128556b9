package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skryldev/voiceclip"
	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/internal/config"
	"github.com/Skryldev/voiceclip/internal/server"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	cfg        config.Config
	log        *logger.Logger
	studio     *voiceclip.Studio
}

func (a *app) open() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Development)
	if err != nil {
		return err
	}
	sc, err := studioConfig(cfg, log)
	if err != nil {
		return err
	}
	studio, err := voiceclip.New(sc)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.studio = cfg, log, studio
	return nil
}

func (a *app) close() error {
	if a.studio == nil {
		return nil
	}
	return a.studio.Close()
}

func studioConfig(c config.Config, log *logger.Logger) (voiceclip.Config, error) {
	container, err := model.ParseContainer(c.Export.Container)
	if err != nil {
		return voiceclip.Config{}, err
	}
	catalogDir := c.CatalogDir
	if catalogDir == "memory" {
		catalogDir = ""
	}
	return voiceclip.Config{
		FFmpegPath:  c.FFmpeg.FFmpegPath,
		FFprobePath: c.FFmpeg.FFprobePath,
		FFplayPath:  c.FFmpeg.FFplayPath,
		DataDir:     c.DataDir,
		CatalogDir:  catalogDir,
		Export: voiceclip.ExportOptions{
			Container:  container,
			Bitrate:    c.Export.Bitrate,
			SampleRate: c.Export.SampleRate,
			Channels:   c.Export.Channels,
			Timeout:    c.Export.Timeout.Std(),
		},
		InputFormat:    c.Record.InputFormat,
		InputDevice:    c.Record.InputDevice,
		SilentPlayback: c.Playback.Device == "clock",
		TickInterval:   c.Playback.TickInterval.Std(),
		S3: voiceclip.S3Config{
			Endpoint:        c.S3.Endpoint,
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Prefix:          c.S3.Prefix,
			PublicURL:       c.S3.PublicURL,
		},
		Logger:  log,
		Workers: c.Workers,
	}, nil
}

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clip API and event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.cfg.Listen
			if listen != "" {
				addr = listen
			}
			return server.New(a.studio.Service(), a.log).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the config")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.studio.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, it := range items {
				fmt.Fprintf(out, "%s\t%-30s\t%s\n", it.ID, it.Title, it.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <id>",
		Short: "Show metadata of a clip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := a.studio.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "duration=%s codec=%s sample_rate=%d channels=%d bitrate=%d size=%d\n",
				meta.Duration, meta.Codec, meta.SampleRate, meta.Channels, meta.Bitrate, meta.Size)
			return nil
		},
	}
}

// editOnce opens a clip, lets stage begin and render an edit, then applies
// it. Any failure cancels the session.
func (a *app) editOnce(ctx context.Context, id string, stage func(*voiceclip.ClipManager) error) (model.AudioItem, error) {
	m, err := a.studio.Open(ctx, id)
	if err != nil {
		return model.AudioItem{}, err
	}
	if err := stage(m); err != nil {
		if _, cerr := m.Cancel(ctx); cerr != nil {
			a.log.Debug("cancel after failed edit", zap.Error(cerr))
		}
		return model.AudioItem{}, err
	}
	return m.Apply(ctx)
}

func printApplied(cmd *cobra.Command, item model.AudioItem) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", item.ID, item.Duration.Round(time.Millisecond))
}

func (a *app) cropCmd() *cobra.Command {
	var start, end time.Duration
	cmd := &cobra.Command{
		Use:   "crop <id>",
		Short: "Keep only [start,end) of a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item, err := a.editOnce(ctx, args[0], func(m *voiceclip.ClipManager) error {
				if err := m.BeginCrop(ctx); err != nil {
					return err
				}
				_, err := m.Crop(ctx, start, end)
				return err
			})
			if err != nil {
				return err
			}
			printApplied(cmd, item)
			return nil
		},
	}
	cmd.Flags().DurationVar(&start, "start", 0, "start of the kept range")
	cmd.Flags().DurationVar(&end, "end", 0, "end of the kept range")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func (a *app) cutCmd() *cobra.Command {
	var specs []string
	cmd := &cobra.Command{
		Use:   "cut <id>",
		Short: "Remove ranges from a clip in one pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges := make([]model.TimeRange, 0, len(specs))
			for _, s := range specs {
				r, err := parseRange(s)
				if err != nil {
					return err
				}
				ranges = append(ranges, r)
			}
			ctx := cmd.Context()
			item, err := a.editOnce(ctx, args[0], func(m *voiceclip.ClipManager) error {
				if err := m.BeginCut(ctx); err != nil {
					return err
				}
				_, err := m.Cut(ctx, ranges...)
				return err
			})
			if err != nil {
				return err
			}
			printApplied(cmd, item)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&specs, "range", nil, "range to remove as START-END, e.g. 1s-2.5s (repeatable)")
	_ = cmd.MarkFlagRequired("range")
	return cmd
}

func (a *app) insertCmd() *cobra.Command {
	var (
		at     time.Duration
		source string
	)
	cmd := &cobra.Command{
		Use:   "insert <id>",
		Short: "Splice another clip into a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			other, err := a.studio.Open(ctx, source)
			if err != nil {
				return err
			}
			item, err := a.editOnce(ctx, args[0], func(m *voiceclip.ClipManager) error {
				if err := m.BeginInsert(ctx); err != nil {
					return err
				}
				_, err := m.Insert(ctx, at, other.Item())
				return err
			})
			if err != nil {
				return err
			}
			printApplied(cmd, item)
			return nil
		},
	}
	cmd.Flags().DurationVar(&at, "at", 0, "offset to insert at")
	cmd.Flags().StringVar(&source, "source", "", "id of the clip to insert")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// parseRange reads START-END where both ends are Go durations.
func parseRange(s string) (model.TimeRange, error) {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.TimeRange{}, fmt.Errorf("range %q: want START-END", s)
	}
	start, err := time.ParseDuration(startStr)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("range %q: start: %w", s, err)
	}
	end, err := time.ParseDuration(endStr)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("range %q: end: %w", s, err)
	}
	if end <= start {
		return model.TimeRange{}, fmt.Errorf("range %q: end must be after start", s)
	}
	return model.TimeRange{Start: start, End: end}, nil
}
