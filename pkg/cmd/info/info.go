package info

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tufeigunchu/captrace/internal/settings"
	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/cmd/options"
	"github.com/tufeigunchu/captrace/pkg/event"
)

type Options struct {
	*options.CommonOptions
}

func NewCommand(opts *options.CommonOptions) *cobra.Command {
	o := &Options{CommonOptions: opts}

	return &cobra.Command{
		Use:   "info [capture-file]",
		Short: "info prints what record kinds a capture file contains, without decoding the capture",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.Run,
	}
}

func (o *Options) Run(_ *cobra.Command, args []string) error {
	path := settings.DefaultCaptureFile
	if len(args) == 1 {
		path = args[0]
	}

	reader, err := capture.OpenCaptureFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer reader.Close()

	var started *event.CaptureStarted
	var finished *event.CaptureFinished
	countsByKind := make(map[string]uint64)
	var total uint64

	for {
		ev, err := reader.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", path)
		}
		countsByKind[event.Kind(ev)]++
		total++

		switch ev := ev.(type) {
		case *event.CaptureStarted:
			started = ev
		case *event.CaptureFinished:
			finished = ev
		}
	}

	fmt.Printf("%s: %d events\n", path, total)
	if started != nil {
		fmt.Printf("Target: %s (pid %d)\n", started.ExecutablePath, started.ProcessID)
	}
	if finished != nil && finished.Status == event.CaptureStatusFailed {
		fmt.Printf("Capture failed: %s\n", finished.ErrorMessage)
	}

	kinds := make([]string, 0, len(countsByKind))
	for kind := range countsByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %-60s %d\n", kind, countsByKind[kind])
	}

	return nil
}
