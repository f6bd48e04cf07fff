package event

// Diagnostic records the tracing service emits alongside the capture data.
// The engine forwards them to the listener without interpretation.

// WarningEvent is a free-form warning from the service.
type WarningEvent struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	Message     string `json:"message"`
}

// ClockResolutionEvent reports the measured resolution of the capture clock.
type ClockResolutionEvent struct {
	TimestampNS       uint64 `json:"timestamp_ns"`
	ClockResolutionNS uint64 `json:"clock_resolution_ns"`
}

// ErrorsWithPerfEventOpenEvent reports perf_event_open failures per cpu.
type ErrorsWithPerfEventOpenEvent struct {
	TimestampNS           uint64 `json:"timestamp_ns"`
	FailedToOpen          int32  `json:"failed_to_open"`
	ReducedSamplingRateHz uint64 `json:"reduced_sampling_rate_hz,omitempty"`
}

// ErrorEnablingApiEvent reports that the manual-instrumentation API could not
// be enabled in the target.
type ErrorEnablingApiEvent struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	Message     string `json:"message"`
}

// ErrorEnablingUserSpaceInstrumentationEvent reports that user-space dynamic
// instrumentation could not be enabled at all.
type ErrorEnablingUserSpaceInstrumentationEvent struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	Message     string `json:"message"`
}

// WarningInstrumentingWithUserSpaceInstrumentationEvent reports functions
// that could not be instrumented individually.
type WarningInstrumentingWithUserSpaceInstrumentationEvent struct {
	TimestampNS              uint64          `json:"timestamp_ns"`
	FunctionsNotInstrumented []FunctionError `json:"functions_not_instrumented,omitempty"`
}

// FunctionError names one function that failed to instrument and why.
type FunctionError struct {
	FunctionID uint64 `json:"function_id"`
	Message    string `json:"message"`
}

// LostPerfRecordsEvent counts kernel records dropped in a ring-buffer window.
type LostPerfRecordsEvent struct {
	DurationNS     uint64 `json:"duration_ns"`
	EndTimestampNS uint64 `json:"end_timestamp_ns"`
	NumLost        uint64 `json:"num_lost"`
}

// OutOfOrderEventsDiscardedEvent counts events the service discarded because
// they arrived after their processing window closed.
type OutOfOrderEventsDiscardedEvent struct {
	DurationNS     uint64 `json:"duration_ns"`
	EndTimestampNS uint64 `json:"end_timestamp_ns"`
	NumDiscarded   uint64 `json:"num_discarded"`
}

func (*WarningEvent) captureEvent()                                          {}
func (*ClockResolutionEvent) captureEvent()                                  {}
func (*ErrorsWithPerfEventOpenEvent) captureEvent()                          {}
func (*ErrorEnablingApiEvent) captureEvent()                                 {}
func (*ErrorEnablingUserSpaceInstrumentationEvent) captureEvent()            {}
func (*WarningInstrumentingWithUserSpaceInstrumentationEvent) captureEvent() {}
func (*LostPerfRecordsEvent) captureEvent()                                  {}
func (*OutOfOrderEventsDiscardedEvent) captureEvent()                        {}
