package event

import (
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	ErrEventNil    = errors.New("capture event is nil")
	ErrKindNotSet  = errors.New("capture event kind not set")
	ErrUnknownKind = errors.New("unknown capture event kind")
)

// envelope is the on-file framing of one capture event: a kind tag plus the
// kind-specific payload. One envelope per line in a capture file.
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes a capture event into its envelope form.
func Marshal(ev CaptureEvent) ([]byte, error) {
	if ev == nil {
		return nil, ErrEventNil
	}
	kind, ok := kindOf(ev)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%T", ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrapf(err, "error encoding %s payload", kind)
	}

	return json.Marshal(envelope{Kind: kind, Payload: payload})
}

// Unmarshal decodes one envelope back into the concrete capture event. A
// missing or unrecognized kind tag is a decode error, never a silent no-op:
// it means the stream was produced by an incompatible service version.
func Unmarshal(data []byte) (CaptureEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "error decoding event envelope")
	}
	if env.Kind == "" {
		return nil, ErrKindNotSet
	}
	newEvent, ok := kindRegistry[env.Kind]
	if !ok {
		return nil, errors.Wrap(ErrUnknownKind, env.Kind)
	}
	ev := newEvent()
	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, errors.Wrapf(err, "error decoding %s payload", env.Kind)
	}

	return ev, nil
}

var kindRegistry = map[string]func() CaptureEvent{
	"capture_started":          func() CaptureEvent { return new(CaptureStarted) },
	"capture_finished":         func() CaptureEvent { return new(CaptureFinished) },
	"scheduling_slice":         func() CaptureEvent { return new(SchedulingSlice) },
	"interned_string":          func() CaptureEvent { return new(InternedString) },
	"interned_callstack":       func() CaptureEvent { return new(InternedCallstack) },
	"callstack_sample":         func() CaptureEvent { return new(CallstackSample) },
	"function_call":            func() CaptureEvent { return new(FunctionCall) },
	"thread_name":              func() CaptureEvent { return new(ThreadName) },
	"thread_names_snapshot":    func() CaptureEvent { return new(ThreadNamesSnapshot) },
	"thread_state_slice":       func() CaptureEvent { return new(ThreadStateSlice) },
	"address_info":             func() CaptureEvent { return new(AddressInfo) },
	"interned_tracepoint_info": func() CaptureEvent { return new(InternedTracepointInfo) },
	"tracepoint_event":         func() CaptureEvent { return new(TracepointEvent) },
	"module_update":            func() CaptureEvent { return new(ModuleUpdate) },
	"modules_snapshot":         func() CaptureEvent { return new(ModulesSnapshot) },
	"memory_usage_event":       func() CaptureEvent { return new(MemoryUsageEvent) },
	"gpu_job":                  func() CaptureEvent { return new(GpuJob) },
	"gpu_queue_submission":     func() CaptureEvent { return new(GpuQueueSubmission) },
	"api_scope_start":          func() CaptureEvent { return new(ApiScopeStart) },
	"api_scope_stop":           func() CaptureEvent { return new(ApiScopeStop) },
	"api_scope_start_async":    func() CaptureEvent { return new(ApiScopeStartAsync) },
	"api_scope_stop_async":     func() CaptureEvent { return new(ApiScopeStopAsync) },
	"api_string_event":         func() CaptureEvent { return new(ApiStringEvent) },
	"api_track_double":         func() CaptureEvent { return new(ApiTrackDouble) },
	"api_track_float":          func() CaptureEvent { return new(ApiTrackFloat) },
	"api_track_int":            func() CaptureEvent { return new(ApiTrackInt) },
	"api_track_int64":          func() CaptureEvent { return new(ApiTrackInt64) },
	"api_track_uint":           func() CaptureEvent { return new(ApiTrackUint) },
	"api_track_uint64":         func() CaptureEvent { return new(ApiTrackUint64) },
	"warning_event":            func() CaptureEvent { return new(WarningEvent) },
	"clock_resolution_event":   func() CaptureEvent { return new(ClockResolutionEvent) },
	"errors_with_perf_event_open_event": func() CaptureEvent { return new(ErrorsWithPerfEventOpenEvent) },
	"error_enabling_api_event":          func() CaptureEvent { return new(ErrorEnablingApiEvent) },
	"error_enabling_user_space_instrumentation_event": func() CaptureEvent {
		return new(ErrorEnablingUserSpaceInstrumentationEvent)
	},
	"warning_instrumenting_with_user_space_instrumentation_event": func() CaptureEvent {
		return new(WarningInstrumentingWithUserSpaceInstrumentationEvent)
	},
	"lost_perf_records_event":            func() CaptureEvent { return new(LostPerfRecordsEvent) },
	"out_of_order_events_discarded_event": func() CaptureEvent { return new(OutOfOrderEventsDiscardedEvent) },
}

// Kind returns the envelope kind tag of an event, or the empty string for a
// nil event.
func Kind(ev CaptureEvent) string {
	if ev == nil {
		return ""
	}
	kind, _ := kindOf(ev)

	return kind
}

func kindOf(ev CaptureEvent) (string, bool) {
	switch ev.(type) {
	case *CaptureStarted:
		return "capture_started", true
	case *CaptureFinished:
		return "capture_finished", true
	case *SchedulingSlice:
		return "scheduling_slice", true
	case *InternedString:
		return "interned_string", true
	case *InternedCallstack:
		return "interned_callstack", true
	case *CallstackSample:
		return "callstack_sample", true
	case *FunctionCall:
		return "function_call", true
	case *ThreadName:
		return "thread_name", true
	case *ThreadNamesSnapshot:
		return "thread_names_snapshot", true
	case *ThreadStateSlice:
		return "thread_state_slice", true
	case *AddressInfo:
		return "address_info", true
	case *InternedTracepointInfo:
		return "interned_tracepoint_info", true
	case *TracepointEvent:
		return "tracepoint_event", true
	case *ModuleUpdate:
		return "module_update", true
	case *ModulesSnapshot:
		return "modules_snapshot", true
	case *MemoryUsageEvent:
		return "memory_usage_event", true
	case *GpuJob:
		return "gpu_job", true
	case *GpuQueueSubmission:
		return "gpu_queue_submission", true
	case *ApiScopeStart:
		return "api_scope_start", true
	case *ApiScopeStop:
		return "api_scope_stop", true
	case *ApiScopeStartAsync:
		return "api_scope_start_async", true
	case *ApiScopeStopAsync:
		return "api_scope_stop_async", true
	case *ApiStringEvent:
		return "api_string_event", true
	case *ApiTrackDouble:
		return "api_track_double", true
	case *ApiTrackFloat:
		return "api_track_float", true
	case *ApiTrackInt:
		return "api_track_int", true
	case *ApiTrackInt64:
		return "api_track_int64", true
	case *ApiTrackUint:
		return "api_track_uint", true
	case *ApiTrackUint64:
		return "api_track_uint64", true
	case *WarningEvent:
		return "warning_event", true
	case *ClockResolutionEvent:
		return "clock_resolution_event", true
	case *ErrorsWithPerfEventOpenEvent:
		return "errors_with_perf_event_open_event", true
	case *ErrorEnablingApiEvent:
		return "error_enabling_api_event", true
	case *ErrorEnablingUserSpaceInstrumentationEvent:
		return "error_enabling_user_space_instrumentation_event", true
	case *WarningInstrumentingWithUserSpaceInstrumentationEvent:
		return "warning_instrumenting_with_user_space_instrumentation_event", true
	case *LostPerfRecordsEvent:
		return "lost_perf_records_event", true
	case *OutOfOrderEventsDiscardedEvent:
		return "out_of_order_events_discarded_event", true
	}

	return "", false
}
