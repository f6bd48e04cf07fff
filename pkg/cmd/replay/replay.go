package replay

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tufeigunchu/captrace/internal/output"
	"github.com/tufeigunchu/captrace/internal/settings"
	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/cmd/options"
	"github.com/tufeigunchu/captrace/pkg/event"
)

type Options struct {
	out    string
	status bool
	report bool
	*options.CommonOptions
}

func NewCommand(opts *options.CommonOptions) *cobra.Command {
	o := &Options{CommonOptions: opts}

	cmd := &cobra.Command{
		Use:   "replay [capture-file]",
		Short: "replay feeds a saved capture file back through the decode engine and summarizes what the stream contains",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.Run,
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Re-save the replayed stream to this capture file")
	cmd.Flags().BoolVar(&o.status, "status", false, "Periodically print replay progress")
	cmd.Flags().BoolVar(&o.report, "report", false, "Generate report (as "+settings.CmdName+"-report.json)")

	return cmd
}

func (o *Options) Run(_ *cobra.Command, args []string) error {
	if o.Debug {
		o.Logger = o.Logger.Level(log.DebugLevel)
	}

	path := settings.DefaultCaptureFile
	if len(args) == 1 {
		path = args[0]
	}

	reader, err := capture.OpenCaptureFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer reader.Close()

	replaySummary := newSummary()
	engine, err := capture.NewProcessor(
		replaySummary,
		capture.WithOutputPath(o.out),
		capture.WithProcessorLogger(o.Logger),
	)
	if err != nil {
		return errors.Wrap(err, "failed to build processor")
	}

	var processor capture.EventProcessor = engine
	if o.out != "" {
		saver, err := capture.NewSaveToFileProcessor(o.out, func(err error) {
			o.Logger.Warn().Err(err).Msg("saving capture file")
		})
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", o.out)
		}
		defer saver.Close()
		processor = capture.NewTeeProcessor(saver, engine)
	}

	if err := o.replay(reader, processor, replaySummary); err != nil {
		return err
	}

	replaySummary.print(os.Stdout)

	if o.report {
		if err := o.writeReport(replaySummary); err != nil {
			return errors.Wrap(err, "failed to write report")
		}
	}

	return nil
}

func (o *Options) writeReport(replaySummary *summary) error {
	file, err := os.Create(settings.CmdName + "-report.json")
	if err != nil {
		return err
	}
	defer file.Close()

	return NewReplayReport(WithReportSummary(replaySummary)).WriteReport(file)
}

// replay pumps events from the reader into the processor: one goroutine
// decodes, one processes, so decompression overlaps with correlation. The
// processing goroutine is the only one touching engine state.
func (o *Options) replay(reader *capture.CaptureFileReader, processor capture.EventProcessor, replaySummary *summary) error {
	g, ctx := errgroup.WithContext(o.Ctx)
	events := make(chan event.CaptureEvent, 256)

	var processed atomic.Uint64

	g.Go(func() error {
		defer close(events)
		for {
			ev, err := reader.ReadEvent()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for ev := range events {
			if err := processor.ProcessEvent(ev); err != nil {
				return errors.Wrapf(err, "failed to process %s event", event.Kind(ev))
			}
			processed.Add(1)
		}
		return nil
	})

	if o.status {
		go func() {
			var last uint64
			output.StatusBar(ctx, time.Second, func() {
				count := processed.Load()
				output.PrintRight(output.PrettyReplayStatus(count, replaySummary.timers.Load(), count-last))
				last = count
			})
		}()
	}

	return g.Wait()
}
