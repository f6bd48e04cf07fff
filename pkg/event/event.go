// Package event defines the wire model of a capture stream: the closed set of
// record kinds produced by the remote tracing service, already deframed and
// decoded from the transport. Exactly one kind is active per record; the
// engine type-switches over the CaptureEvent interface and treats anything
// outside the set as a protocol mismatch.
package event

// CaptureEvent is one decoded record from the tracing wire stream. The
// interface is sealed: only types in this package implement it, so a
// dispatcher switch over all kinds is exhaustive by construction.
type CaptureEvent interface {
	captureEvent()
}

// CaptureStarted opens a capture. Timestamps and ids echo the wire contract
// bit-for-bit.
type CaptureStarted struct {
	ProcessID               int32  `json:"pid"`
	ExecutablePath          string `json:"exe_path"`
	ExecutableBuildID       string `json:"exe_build_id,omitempty"`
	CaptureStartTimestampNS uint64 `json:"capture_start_timestamp_ns"`
}

// CaptureFinished closes a capture.
type CaptureFinished struct {
	Status       CaptureStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// CaptureStatus reports how the capture ended on the service side.
type CaptureStatus int32

const (
	CaptureStatusSuccessful CaptureStatus = iota
	CaptureStatusFailed
)

// SchedulingSlice reports one interval during which a thread occupied a core.
// OutTimestampNS is when the thread was switched out; the switch-in time is
// OutTimestampNS - DurationNS.
type SchedulingSlice struct {
	ProcessID      int32  `json:"pid"`
	ThreadID       int32  `json:"tid"`
	Core           int32  `json:"core"`
	DurationNS     uint64 `json:"duration_ns"`
	OutTimestampNS uint64 `json:"out_timestamp_ns"`
}

// InternedString binds a caller-assigned key to a string. Keys are
// write-once: the first binding wins.
type InternedString struct {
	Key    uint64 `json:"key"`
	Intern string `json:"intern"`
}

// InternedCallstack binds a key to a raw callstack.
type InternedCallstack struct {
	Key    uint64    `json:"key"`
	Intern Callstack `json:"intern"`
}

// Callstack is an ordered sequence of instruction addresses, outermost frame
// last, plus a classification of how the unwinding went.
type Callstack struct {
	PCs  []uint64      `json:"pcs"`
	Type CallstackType `json:"type"`
}

// CallstackType distinguishes a fully unwound stack from the degraded states
// the unwinder can report.
type CallstackType int32

const (
	CallstackComplete CallstackType = iota
	CallstackDwarfUnwindingError
	CallstackFramePointerUnwindingError
	CallstackInUprobes
	CallstackInUserSpaceInstrumentation
	CallstackPatchingFailed
	CallstackStackTopForDwarfUnwindingTooSmall
	CallstackStackTopDwarfUnwindingError
)

// CallstackSample references a previously interned callstack by id.
type CallstackSample struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	CallstackID uint64 `json:"callstack_id"`
}

// FunctionCall reports one completed invocation of a dynamically instrumented
// function.
type FunctionCall struct {
	ProcessID      int32    `json:"pid"`
	ThreadID       int32    `json:"tid"`
	FunctionID     uint64   `json:"function_id"`
	DurationNS     uint64   `json:"duration_ns"`
	EndTimestampNS uint64   `json:"end_timestamp_ns"`
	Depth          int32    `json:"depth"`
	ReturnValue    uint64   `json:"return_value"`
	Registers      []uint64 `json:"registers,omitempty"`
}

// ThreadName associates a thread with its current name.
type ThreadName struct {
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	Name        string `json:"name"`
	TimestampNS uint64 `json:"timestamp_ns"`
}

// ThreadNamesSnapshot carries the names of all threads alive when the capture
// started.
type ThreadNamesSnapshot struct {
	TimestampNS uint64       `json:"timestamp_ns"`
	ThreadNames []ThreadName `json:"thread_names"`
}

// ThreadStateSlice reports one interval a thread spent in a scheduling state.
type ThreadStateSlice struct {
	ThreadID       int32       `json:"tid"`
	State          ThreadState `json:"state"`
	DurationNS     uint64      `json:"duration_ns"`
	EndTimestampNS uint64      `json:"end_timestamp_ns"`
}

// ThreadState is the kernel scheduling state vocabulary of the wire contract.
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

// AddressInfo resolves a sampled absolute address to a function and module.
// Both name fields reference previously interned strings.
type AddressInfo struct {
	AbsoluteAddress  uint64 `json:"absolute_address"`
	OffsetInFunction uint64 `json:"offset_in_function"`
	FunctionNameKey  uint64 `json:"function_name_key"`
	ModuleNameKey    uint64 `json:"module_name_key"`
}

// TracepointInfo identifies a kernel tracepoint by category and name.
type TracepointInfo struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// InternedTracepointInfo binds a key to a tracepoint definition.
type InternedTracepointInfo struct {
	Key    uint64         `json:"key"`
	Intern TracepointInfo `json:"intern"`
}

// TracepointEvent reports one hit of an instrumented tracepoint.
type TracepointEvent struct {
	ProcessID         int32  `json:"pid"`
	ThreadID          int32  `json:"tid"`
	TimestampNS       uint64 `json:"timestamp_ns"`
	CPU               int32  `json:"cpu"`
	TracepointInfoKey uint64 `json:"tracepoint_info_key"`
}

// ModuleInfo describes one loaded object file of the target process.
type ModuleInfo struct {
	Name         string `json:"name"`
	FilePath     string `json:"file_path"`
	FileSize     uint64 `json:"file_size"`
	AddressStart uint64 `json:"address_start"`
	AddressEnd   uint64 `json:"address_end"`
	BuildID      string `json:"build_id,omitempty"`
	LoadBias     uint64 `json:"load_bias"`
}

// ModuleUpdate reports a module (un)mapping observed mid-capture.
type ModuleUpdate struct {
	ProcessID   int32      `json:"pid"`
	TimestampNS uint64     `json:"timestamp_ns"`
	Module      ModuleInfo `json:"module"`
}

// ModulesSnapshot carries the modules mapped when the capture started.
type ModulesSnapshot struct {
	ProcessID   int32        `json:"pid"`
	TimestampNS uint64       `json:"timestamp_ns"`
	Modules     []ModuleInfo `json:"modules"`
}

func (*CaptureStarted) captureEvent()         {}
func (*CaptureFinished) captureEvent()        {}
func (*SchedulingSlice) captureEvent()        {}
func (*InternedString) captureEvent()         {}
func (*InternedCallstack) captureEvent()      {}
func (*CallstackSample) captureEvent()        {}
func (*FunctionCall) captureEvent()           {}
func (*ThreadName) captureEvent()             {}
func (*ThreadNamesSnapshot) captureEvent()    {}
func (*ThreadStateSlice) captureEvent()       {}
func (*AddressInfo) captureEvent()            {}
func (*InternedTracepointInfo) captureEvent() {}
func (*TracepointEvent) captureEvent()        {}
func (*ModuleUpdate) captureEvent()           {}
func (*ModulesSnapshot) captureEvent()        {}
