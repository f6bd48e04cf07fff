package event

// MemoryUsageEvent bundles up to three sub-records sampled at the same
// synchronized timestamp. Any of the three may be absent.
type MemoryUsageEvent struct {
	TimestampNS   uint64              `json:"timestamp_ns"`
	SystemMemory  *SystemMemoryUsage  `json:"system_memory_usage,omitempty"`
	CGroupMemory  *CGroupMemoryUsage  `json:"cgroup_memory_usage,omitempty"`
	ProcessMemory *ProcessMemoryUsage `json:"process_memory_usage,omitempty"`
}

// SystemMemoryUsage is a snapshot of /proc/meminfo plus system page-fault
// counters. A value of -1 means the field could not be read.
type SystemMemoryUsage struct {
	TimestampNS uint64 `json:"timestamp_ns"`
	TotalKB     int64  `json:"total_kb"`
	FreeKB      int64  `json:"free_kb"`
	AvailableKB int64  `json:"available_kb"`
	BuffersKB   int64  `json:"buffers_kb"`
	CachedKB    int64  `json:"cached_kb"`
	PgFault     int64  `json:"pgfault"`
	PgMajFault  int64  `json:"pgmajfault"`
}

// CGroupMemoryUsage is a snapshot of the target's memory cgroup.
type CGroupMemoryUsage struct {
	CGroupName      string `json:"cgroup_name"`
	TimestampNS     uint64 `json:"timestamp_ns"`
	LimitBytes      int64  `json:"limit_bytes"`
	RssBytes        int64  `json:"rss_bytes"`
	MappedFileBytes int64  `json:"mapped_file_bytes"`
	PgFault         int64  `json:"pgfault"`
	PgMajFault      int64  `json:"pgmajfault"`
}

// ProcessMemoryUsage is a snapshot of the target process's memory counters.
type ProcessMemoryUsage struct {
	ProcessID   int32  `json:"pid"`
	TimestampNS uint64 `json:"timestamp_ns"`
	RssAnonKB   int64  `json:"rss_anon_kb"`
	MinFlt      int64  `json:"minflt"`
	MajFlt      int64  `json:"majflt"`
}

func (*MemoryUsageEvent) captureEvent() {}
