package replay

import (
	"encoding/json"
	"io"
)

// ReplayReport is the machine-readable counterpart of the replay summary.
type ReplayReport struct {
	ExePath           string            `json:"exe_path,omitempty"`
	ProcessID         int32             `json:"pid,omitempty"`
	Timers            uint64            `json:"timers"`
	TimersByType      map[string]uint64 `json:"timers_by_type"`
	InternedStrings   uint64            `json:"interned_strings"`
	UniqueCallstacks  uint64            `json:"unique_callstacks"`
	CallstackSamples  uint64            `json:"callstack_samples"`
	Threads           int               `json:"threads"`
	ThreadStateSlices uint64            `json:"thread_state_slices"`
	AddressInfos      uint64            `json:"address_infos"`
	TracepointHits    uint64            `json:"tracepoint_hits"`
	LostRecords       uint64            `json:"lost_records"`
	DiscardedEvents   uint64            `json:"discarded_events"`
	Warnings          []string          `json:"warnings,omitempty"`
}

type ReplayReportOption func(*ReplayReport)

func NewReplayReport(opts ...ReplayReportOption) *ReplayReport {
	report := new(ReplayReport)
	for _, opt := range opts {
		opt(report)
	}

	return report
}

func WithReportSummary(s *summary) ReplayReportOption {
	return func(o *ReplayReport) {
		if s.started != nil {
			o.ExePath = s.started.ExecutablePath
			o.ProcessID = s.started.ProcessID
		}
		o.Timers = s.timers.Load()
		o.TimersByType = make(map[string]uint64, len(s.timersByType))
		for timerType, count := range s.timersByType {
			o.TimersByType[timerType.String()] = count
		}
		o.InternedStrings = s.strings.Load()
		o.UniqueCallstacks = s.uniqueCallstacks
		o.CallstackSamples = s.callstackEvents
		o.Threads = len(s.threadNames)
		o.ThreadStateSlices = s.threadStateSlices
		o.AddressInfos = s.addressInfos
		o.TracepointHits = s.tracepointEvents
		o.LostRecords = s.lostRecords
		o.DiscardedEvents = s.discardedEvents
		o.Warnings = s.warnings
	}
}

func (r *ReplayReport) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(r)
}
