package event

// Manual-instrumentation records emitted by the in-process tracing API of the
// target application.

// ApiScopeStart opens a synchronous scope on the calling thread. The matching
// ApiScopeStop is identified purely by thread order (scopes nest).
type ApiScopeStart struct {
	TimestampNS       uint64 `json:"timestamp_ns"`
	ProcessID         int32  `json:"pid"`
	ThreadID          int32  `json:"tid"`
	Name              string `json:"name"`
	ColorRGBA         uint32 `json:"color_rgba,omitempty"`
	GroupID           uint64 `json:"group_id,omitempty"`
	AddressInFunction uint64 `json:"address_in_function,omitempty"`
}

// ApiScopeStop closes the innermost open synchronous scope of its thread.
type ApiScopeStop struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
}

// ApiScopeStartAsync opens an asynchronous scope identified by a
// caller-supplied id; the stop may arrive on any thread.
type ApiScopeStartAsync struct {
	TimestampNS       uint64 `json:"timestamp_ns"`
	ProcessID         int32  `json:"pid"`
	ThreadID          int32  `json:"tid"`
	Name              string `json:"name"`
	ID                uint64 `json:"id"`
	ColorRGBA         uint32 `json:"color_rgba,omitempty"`
	AddressInFunction uint64 `json:"address_in_function,omitempty"`
}

// ApiScopeStopAsync closes the asynchronous scope with the same id.
type ApiScopeStopAsync struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	ID          uint64 `json:"id"`
}

// ApiStringEvent attaches a string to an asynchronous scope id.
type ApiStringEvent struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
}

// ApiTrackDouble plots one float64 sample on a named track.
type ApiTrackDouble struct {
	TimestampNS uint64  `json:"timestamp_ns"`
	ProcessID   int32   `json:"pid"`
	ThreadID    int32   `json:"tid"`
	Name        string  `json:"name"`
	Data        float64 `json:"data"`
}

// ApiTrackFloat plots one float32 sample on a named track.
type ApiTrackFloat struct {
	TimestampNS uint64  `json:"timestamp_ns"`
	ProcessID   int32   `json:"pid"`
	ThreadID    int32   `json:"tid"`
	Name        string  `json:"name"`
	Data        float32 `json:"data"`
}

// ApiTrackInt plots one int32 sample on a named track.
type ApiTrackInt struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	Name        string `json:"name"`
	Data        int32  `json:"data"`
}

// ApiTrackInt64 plots one int64 sample on a named track.
type ApiTrackInt64 struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	Name        string `json:"name"`
	Data        int64  `json:"data"`
}

// ApiTrackUint plots one uint32 sample on a named track.
type ApiTrackUint struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	Name        string `json:"name"`
	Data        uint32 `json:"data"`
}

// ApiTrackUint64 plots one uint64 sample on a named track.
type ApiTrackUint64 struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	ProcessID   int32  `json:"pid"`
	ThreadID    int32  `json:"tid"`
	Name        string `json:"name"`
	Data        uint64 `json:"data"`
}

func (*ApiScopeStart) captureEvent()      {}
func (*ApiScopeStop) captureEvent()       {}
func (*ApiScopeStartAsync) captureEvent() {}
func (*ApiScopeStopAsync) captureEvent()  {}
func (*ApiStringEvent) captureEvent()     {}
func (*ApiTrackDouble) captureEvent()     {}
func (*ApiTrackFloat) captureEvent()      {}
func (*ApiTrackInt) captureEvent()        {}
func (*ApiTrackInt64) captureEvent()      {}
func (*ApiTrackUint) captureEvent()       {}
func (*ApiTrackUint64) captureEvent()     {}
