package event

// GpuJob is the CPU-observed half of one unit of GPU work: the four driver
// timestamps that bracket its way from the submitting ioctl to the fence
// signal. TimelineKey references an interned string naming the hardware
// timeline the job ran on.
type GpuJob struct {
	ProcessID           int32  `json:"pid"`
	ThreadID            int32  `json:"tid"`
	Context             uint32 `json:"context"`
	SeqNo               uint32 `json:"seqno"`
	Depth               int32  `json:"depth"`
	TimelineKey         uint64 `json:"timeline_key"`
	SubmitTimeNS        uint64 `json:"submit_time_ns"`
	SchedRunTimeNS      uint64 `json:"sched_run_time_ns"`
	HardwareStartTimeNS uint64 `json:"hardware_start_time_ns"`
	FenceSignaledTimeNS uint64 `json:"fence_signaled_time_ns"`
}

// GpuQueueSubmission is the GPU-observed half: command buffers and debug
// markers recorded around one vkQueueSubmit, with GPU-clock timestamps.
type GpuQueueSubmission struct {
	MetaInfo         GpuQueueSubmissionMetaInfo `json:"meta_info"`
	SubmitInfos      []GpuSubmitInfo            `json:"submit_infos"`
	CompletedMarkers []GpuDebugMarker           `json:"completed_markers,omitempty"`
	NumBeginMarkers  uint32                     `json:"num_begin_markers"`
}

// GpuQueueSubmissionMetaInfo identifies the originating vkQueueSubmit call:
// the submitting thread and the CPU timestamps taken immediately before and
// after the driver call. The pair brackets the matching GpuJob's submit time.
type GpuQueueSubmissionMetaInfo struct {
	ProcessID                  int32  `json:"pid"`
	ThreadID                   int32  `json:"tid"`
	PreSubmissionCPUTimestamp  uint64 `json:"pre_submission_cpu_timestamp_ns"`
	PostSubmissionCPUTimestamp uint64 `json:"post_submission_cpu_timestamp_ns"`
}

// GpuSubmitInfo is one VkSubmitInfo block within a submission.
type GpuSubmitInfo struct {
	CommandBuffers []GpuCommandBuffer `json:"command_buffers"`
}

// GpuCommandBuffer carries the GPU begin/end timestamps of one command
// buffer. A zero begin timestamp means the capture started while the buffer
// was already executing.
type GpuCommandBuffer struct {
	BeginGpuTimestampNS uint64 `json:"begin_gpu_timestamp_ns"`
	EndGpuTimestampNS   uint64 `json:"end_gpu_timestamp_ns"`
}

// GpuDebugMarker is a completed (ended) debug marker. Its begin half may have
// been recorded in an earlier submission, in which case BeginMarker snapshots
// that submission's meta info; BeginMarker is nil when the begin was never
// recorded at all.
type GpuDebugMarker struct {
	TextKey           uint64                   `json:"text_key"`
	Depth             int32                    `json:"depth"`
	EndGpuTimestampNS uint64                   `json:"end_gpu_timestamp_ns"`
	Color             *GpuDebugMarkerColor     `json:"color,omitempty"`
	BeginMarker       *GpuDebugMarkerBeginInfo `json:"begin_marker,omitempty"`
}

// GpuDebugMarkerColor is the 0.0-1.0 float color the Vulkan layer reported.
type GpuDebugMarkerColor struct {
	Red   float32 `json:"red"`
	Green float32 `json:"green"`
	Blue  float32 `json:"blue"`
	Alpha float32 `json:"alpha"`
}

// GpuDebugMarkerBeginInfo snapshots the submission that carried the begin
// half of a marker.
type GpuDebugMarkerBeginInfo struct {
	MetaInfo       GpuQueueSubmissionMetaInfo `json:"meta_info"`
	GpuTimestampNS uint64                     `json:"gpu_timestamp_ns"`
}

func (*GpuJob) captureEvent()             {}
func (*GpuQueueSubmission) captureEvent() {}
