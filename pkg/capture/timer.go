package capture

import (
	"github.com/tufeigunchu/captrace/pkg/event"
)

// UnknownThreadID marks a timer whose originating thread could not be
// determined (best-effort GPU marker reconstruction, see SubmissionMatcher).
const UnknownThreadID int32 = -1

// noProcessor marks timers that are not bound to a CPU core.
const noProcessor int32 = -1

// TimerType tags the activity a Timer represents.
type TimerType int32

const (
	TimerNone TimerType = iota
	TimerCoreActivity
	TimerGpuActivity
	TimerGpuCommandBuffer
	TimerGpuDebugMarker
	TimerApiScope
	TimerApiScopeAsync
	TimerSystemMemoryUsage
	TimerCGroupAndProcessMemoryUsage
	TimerPageFaults
)

func (t TimerType) String() string {
	switch t {
	case TimerNone:
		return "none"
	case TimerCoreActivity:
		return "core_activity"
	case TimerGpuActivity:
		return "gpu_activity"
	case TimerGpuCommandBuffer:
		return "gpu_command_buffer"
	case TimerGpuDebugMarker:
		return "gpu_debug_marker"
	case TimerApiScope:
		return "api_scope"
	case TimerApiScopeAsync:
		return "api_scope_async"
	case TimerSystemMemoryUsage:
		return "system_memory_usage"
	case TimerCGroupAndProcessMemoryUsage:
		return "cgroup_and_process_memory_usage"
	case TimerPageFaults:
		return "page_faults"
	}

	return "unknown"
}

// Color is an RGBA color with 0-255 channels, quantized from the float
// channels of the wire records.
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
	Alpha uint8
}

// colorFromRGBA unpacks a packed 0xRRGGBBAA value.
func colorFromRGBA(rgba uint32) Color {
	return Color{
		Red:   uint8(rgba >> 24),
		Green: uint8(rgba >> 16),
		Blue:  uint8(rgba >> 8),
		Alpha: uint8(rgba),
	}
}

// Timer is the engine's universal output unit: one interval of activity on
// some track of the timeline. Which payload fields are meaningful depends on
// Type; timestamp and id fields always echo the wire values bit-for-bit.
type Timer struct {
	StartNS   uint64
	EndNS     uint64
	ProcessID int32
	ThreadID  int32
	Depth     int32
	Processor int32
	Type      TimerType

	// FunctionID and UserDataKey carry the function-call payload; UserDataKey
	// doubles as the interned label key of GPU timers.
	FunctionID  uint64
	UserDataKey uint64

	// TimelineKey identifies the hardware timeline of GPU timers.
	TimelineKey uint64

	// GroupID groups related timers (api scopes, DXVK-labeled GPU markers).
	GroupID uint64

	// Manual-instrumentation payload.
	ApiScopeName      string
	AsyncScopeID      uint64
	AddressInFunction uint64

	Color Color

	// Registers holds the fixed-position encoded values of memory-tracking
	// timers and the raw register values of function calls. Encoders must
	// never produce a zero-length slice for memory timers: the transport
	// drops empty arrays, making them indistinguishable from absent ones.
	Registers []uint64
}

// CallstackInfo is the resolved, listener-facing form of an interned
// callstack.
type CallstackInfo struct {
	Frames []uint64
	Type   event.CallstackType
}

// CallstackEvent ties one sample to its interned callstack.
type CallstackEvent struct {
	TimestampNS uint64
	CallstackID uint64
	ThreadID    int32
}

// ThreadState is the engine's output vocabulary for thread scheduling
// states. It maps 1:1 from the wire vocabulary; an unmapped input state is a
// protocol violation.
type ThreadState int32

const (
	ThreadStateRunning ThreadState = iota
	ThreadStateRunnable
	ThreadStateInterruptibleSleep
	ThreadStateUninterruptibleSleep
	ThreadStateStopped
	ThreadStateTraced
	ThreadStateDead
	ThreadStateZombie
	ThreadStateParked
	ThreadStateIdle
)

// ThreadStateSlice is one interval a thread spent in a scheduling state.
type ThreadStateSlice struct {
	ThreadID         int32
	State            ThreadState
	BeginTimestampNS uint64
	EndTimestampNS   uint64
}

// AddressInfo resolves an absolute address to a demangled function name and
// the module it lives in.
type AddressInfo struct {
	AbsoluteAddress  uint64
	ModulePath       string
	FunctionName     string
	OffsetInFunction uint64
}

// TracepointEvent is one tracepoint hit, referencing its interned
// definition.
type TracepointEvent struct {
	ProcessID         int32
	ThreadID          int32
	TimestampNS       uint64
	CPU               int32
	TracepointInfoKey uint64
}

// ApiStringEvent attaches a string to an asynchronous scope.
type ApiStringEvent struct {
	TimestampNS  uint64
	ProcessID    int32
	ThreadID     int32
	AsyncScopeID uint64
	Name         string
}

// TrackValueType tags which Data field of an ApiTrackValue is set.
type TrackValueType int32

const (
	TrackValueDouble TrackValueType = iota
	TrackValueFloat
	TrackValueInt32
	TrackValueInt64
	TrackValueUint32
	TrackValueUint64
)

// ApiTrackValue is one sample on a user-defined value track. Exactly one
// Data field is meaningful, selected by Type.
type ApiTrackValue struct {
	TimestampNS uint64
	ProcessID   int32
	ThreadID    int32
	Name        string
	Type        TrackValueType
	DataDouble  float64
	DataFloat   float32
	DataInt32   int32
	DataInt64   int64
	DataUint32  uint32
	DataUint64  uint64
}
