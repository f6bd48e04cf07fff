package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tufeigunchu/captrace/internal/settings"
	"github.com/tufeigunchu/captrace/pkg/cmd/info"
	"github.com/tufeigunchu/captrace/pkg/cmd/options"
	"github.com/tufeigunchu/captrace/pkg/cmd/replay"
)

func NewRootCmd(opts *options.CommonOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               settings.CmdName,
		Short:             settings.CmdName + " decodes and correlates profiling capture streams",
		Long:              settings.CmdName + ` turns the raw event stream of a profiling capture into timers, callstacks and tracks, either live from a capture file or while re-saving it.`,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(replay.NewCommand(opts))
	cmd.AddCommand(info.NewCommand(opts))
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Sets log level to debug")

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	go func() {
		<-ctx.Done()
		cancel()
	}()

	opts := options.NewCommonOptions(
		options.WithContext(ctx),
		options.WithLogger(logger),
	)

	if err := NewRootCmd(opts).Execute(); err != nil {
		os.Exit(1)
	}
}
