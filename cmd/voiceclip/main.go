package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "voiceclip",
		Short:         "Record, play and edit voice clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ~/.config/voiceclip/config.toml)")

	root.AddCommand(
		a.serveCmd(),
		a.listCmd(),
		a.probeCmd(),
		a.cropCmd(),
		a.cutCmd(),
		a.insertCmd(),
	)
	return root
}
