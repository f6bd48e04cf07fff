package capture

import (
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/tufeigunchu/captrace/pkg/event"
)

// ErrEventAfterFinished is handed to the error handler of a
// SaveToFileProcessor that receives further events after the
// capture-finished record.
var ErrEventAfterFinished = errors.New("unexpected event after capture finished")

// TeeProcessor fans each event out to several processors in order. The first
// failing processor short-circuits the rest.
type TeeProcessor struct {
	processors []EventProcessor
}

func NewTeeProcessor(processors ...EventProcessor) *TeeProcessor {
	return &TeeProcessor{processors: processors}
}

func (t *TeeProcessor) ProcessEvent(ev event.CaptureEvent) error {
	for _, p := range t.processors {
		if err := p.ProcessEvent(ev); err != nil {
			return err
		}
	}

	return nil
}

type saveState int

const (
	saveProcessing saveState = iota
	saveFinished
	saveErrorReported
)

// SaveToFileProcessor persists the raw event stream to a capture file,
// zstd-compressed JSON lines, exactly as received and before any decoding.
// It is meant to run in front of the engine via a TeeProcessor.
//
// Write failures are not fatal to the capture: they are reported once
// through the error handler and the processor goes quiet, swallowing the
// rest of the stream.
type SaveToFileProcessor struct {
	file         *os.File
	encoder      *zstd.Encoder
	errorHandler func(error)
	state        saveState
}

// NewSaveToFileProcessor creates the capture file at path, truncating any
// existing file. The errorHandler receives write and close failures; it may
// be nil.
func NewSaveToFileProcessor(path string, errorHandler func(error)) (*SaveToFileProcessor, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating capture file")
	}
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "initializing capture file compression")
	}
	if errorHandler == nil {
		errorHandler = func(error) {}
	}

	return &SaveToFileProcessor{
		file:         file,
		encoder:      encoder,
		errorHandler: errorHandler,
	}, nil
}

func (p *SaveToFileProcessor) ProcessEvent(ev event.CaptureEvent) error {
	switch p.state {
	case saveFinished:
		p.reportError(ErrEventAfterFinished)
		return nil
	case saveErrorReported:
		return nil
	}

	data, err := event.Marshal(ev)
	if err != nil {
		p.reportError(err)
		return nil
	}
	if _, err := p.encoder.Write(append(data, '\n')); err != nil {
		p.reportError(errors.Wrap(err, "writing capture file"))
		return nil
	}

	if _, finished := ev.(*event.CaptureFinished); finished {
		if err := p.closeStream(); err != nil {
			p.reportError(err)
			return nil
		}
		p.state = saveFinished
	}

	return nil
}

// Close flushes and closes the capture file. It is a no-op if the
// capture-finished record already closed the stream.
func (p *SaveToFileProcessor) Close() error {
	if p.file == nil {
		return nil
	}

	return p.closeStream()
}

func (p *SaveToFileProcessor) closeStream() error {
	if err := p.encoder.Close(); err != nil {
		_ = p.file.Close()
		p.file = nil
		return errors.Wrap(err, "flushing capture file")
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return errors.Wrap(err, "closing capture file")
	}

	return nil
}

func (p *SaveToFileProcessor) reportError(err error) {
	p.errorHandler(err)
	p.state = saveErrorReported
}
