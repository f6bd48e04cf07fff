package replay

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/event"
)

// summary is the replay listener: it aggregates everything the engine emits
// into counters for the final report. The timer and string counters are
// atomic because the status bar goroutine reads them mid-replay.
type summary struct {
	timers  atomic.Uint64
	strings atomic.Uint64

	started  *event.CaptureStarted
	finished *event.CaptureFinished

	timersByType      map[capture.TimerType]uint64
	uniqueCallstacks  uint64
	callstackEvents   uint64
	threadNames       map[int32]string
	threadStateSlices uint64
	addressInfos      uint64
	tracepointInfos   uint64
	tracepointEvents  uint64
	moduleUpdates     uint64
	modulesMapped     uint64
	apiStringEvents   uint64
	apiTrackValues    uint64
	warnings          []string
	lostRecords       uint64
	discardedEvents   uint64
}

func newSummary() *summary {
	return &summary{
		timersByType: make(map[capture.TimerType]uint64),
		threadNames:  make(map[int32]string),
	}
}

func (s *summary) print(w io.Writer) {
	if s.started != nil {
		fmt.Fprintf(w, "Capture of %s (pid %d)\n", s.started.ExecutablePath, s.started.ProcessID)
	}
	if s.finished != nil && s.finished.Status == event.CaptureStatusFailed {
		fmt.Fprintf(w, "Capture failed: %s\n", s.finished.ErrorMessage)
	}

	fmt.Fprintf(w, "Timers: %d\n", s.timers.Load())
	types := make([]capture.TimerType, 0, len(s.timersByType))
	for timerType := range s.timersByType {
		types = append(types, timerType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, timerType := range types {
		fmt.Fprintf(w, "  %-33s %d\n", timerType.String(), s.timersByType[timerType])
	}

	fmt.Fprintf(w, "Interned strings: %d\n", s.strings.Load())
	fmt.Fprintf(w, "Unique callstacks: %d (%d samples)\n", s.uniqueCallstacks, s.callstackEvents)
	fmt.Fprintf(w, "Threads: %d\n", len(s.threadNames))
	fmt.Fprintf(w, "Thread state slices: %d\n", s.threadStateSlices)
	fmt.Fprintf(w, "Address infos: %d\n", s.addressInfos)
	fmt.Fprintf(w, "Tracepoints: %d (%d hits)\n", s.tracepointInfos, s.tracepointEvents)
	fmt.Fprintf(w, "Module updates: %d (snapshot of %d)\n", s.moduleUpdates, s.modulesMapped)
	fmt.Fprintf(w, "Api strings: %d, track values: %d\n", s.apiStringEvents, s.apiTrackValues)
	if s.lostRecords > 0 || s.discardedEvents > 0 {
		fmt.Fprintf(w, "Lost records: %d, discarded out-of-order events: %d\n", s.lostRecords, s.discardedEvents)
	}
	for _, warning := range s.warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

func (s *summary) OnCaptureStarted(started *event.CaptureStarted, _ string, _ map[uint64]struct{}) {
	s.started = started
}

func (s *summary) OnCaptureFinished(finished *event.CaptureFinished) {
	s.finished = finished
}

func (s *summary) OnTimer(timer capture.Timer) {
	s.timers.Add(1)
	s.timersByType[timer.Type]++
}

func (s *summary) OnKeyAndString(uint64, string) {
	s.strings.Add(1)
}

func (s *summary) OnUniqueCallstack(uint64, capture.CallstackInfo) {
	s.uniqueCallstacks++
}

func (s *summary) OnCallstackEvent(capture.CallstackEvent) {
	s.callstackEvents++
}

func (s *summary) OnThreadName(threadID int32, name string) {
	s.threadNames[threadID] = name
}

func (s *summary) OnThreadStateSlice(capture.ThreadStateSlice) {
	s.threadStateSlices++
}

func (s *summary) OnAddressInfo(capture.AddressInfo) {
	s.addressInfos++
}

func (s *summary) OnUniqueTracepointInfo(uint64, event.TracepointInfo) {
	s.tracepointInfos++
}

func (s *summary) OnTracepointEvent(capture.TracepointEvent) {
	s.tracepointEvents++
}

func (s *summary) OnModuleUpdate(uint64, event.ModuleInfo) {
	s.moduleUpdates++
}

func (s *summary) OnModulesSnapshot(_ uint64, modules []event.ModuleInfo) {
	s.modulesMapped += uint64(len(modules))
}

func (s *summary) OnApiStringEvent(capture.ApiStringEvent) {
	s.apiStringEvents++
}

func (s *summary) OnApiTrackValue(capture.ApiTrackValue) {
	s.apiTrackValues++
}

func (s *summary) OnWarningEvent(warning *event.WarningEvent) {
	s.warnings = append(s.warnings, warning.Message)
}

func (s *summary) OnClockResolutionEvent(*event.ClockResolutionEvent) {}

func (s *summary) OnErrorsWithPerfEventOpenEvent(*event.ErrorsWithPerfEventOpenEvent) {}

func (s *summary) OnErrorEnablingApiEvent(*event.ErrorEnablingApiEvent) {}

func (s *summary) OnErrorEnablingUserSpaceInstrumentationEvent(*event.ErrorEnablingUserSpaceInstrumentationEvent) {
}

func (s *summary) OnWarningInstrumentingWithUserSpaceInstrumentationEvent(*event.WarningInstrumentingWithUserSpaceInstrumentationEvent) {
}

func (s *summary) OnLostPerfRecordsEvent(lost *event.LostPerfRecordsEvent) {
	s.lostRecords += lost.NumLost
}

func (s *summary) OnOutOfOrderEventsDiscardedEvent(discarded *event.OutOfOrderEventsDiscardedEvent) {
	s.discardedEvents += discarded.NumDiscarded
}
