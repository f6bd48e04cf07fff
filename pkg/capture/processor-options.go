package capture

import (
	log "github.com/rs/zerolog"
)

type ProcessorOption func(*Processor)

// WithOutputPath records the path the capture is being saved to. It is
// forwarded verbatim on capture-started and does not affect decoding.
func WithOutputPath(path string) ProcessorOption {
	return func(p *Processor) {
		p.outputPath = path
	}
}

// WithFrameTrackFunctionIDs marks function ids whose invocations define
// per-frame timing boundaries. Forwarded verbatim on capture-started.
func WithFrameTrackFunctionIDs(functionIDs map[uint64]struct{}) ProcessorOption {
	return func(p *Processor) {
		p.frameTrackFunctionIDs = functionIDs
	}
}

// WithProcessorLogger sets the logger used for recoverable anomalies.
func WithProcessorLogger(logger log.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}
