package capture_test

import (
	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/event"
)

// recordingListener collects everything the engine emits so tests can assert
// on it.
type recordingListener struct {
	started               *event.CaptureStarted
	startedOutputPath     string
	startedFrameTrackIDs  map[uint64]struct{}
	finished              *event.CaptureFinished
	timers                []capture.Timer
	keyedStrings          map[uint64]string
	uniqueCallstacks      map[uint64]capture.CallstackInfo
	callstackEvents       []capture.CallstackEvent
	threadNames           map[int32]string
	threadStateSlices     []capture.ThreadStateSlice
	addressInfos          []capture.AddressInfo
	uniqueTracepointInfos map[uint64]event.TracepointInfo
	tracepointEvents      []capture.TracepointEvent
	moduleUpdates         []event.ModuleInfo
	modulesSnapshots      [][]event.ModuleInfo
	apiStringEvents       []capture.ApiStringEvent
	apiTrackValues        []capture.ApiTrackValue
	warnings              []*event.WarningEvent
	lost                  []*event.LostPerfRecordsEvent
	discarded             []*event.OutOfOrderEventsDiscardedEvent
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		keyedStrings:          make(map[uint64]string),
		uniqueCallstacks:      make(map[uint64]capture.CallstackInfo),
		threadNames:           make(map[int32]string),
		uniqueTracepointInfos: make(map[uint64]event.TracepointInfo),
	}
}

// timersOfType filters the recorded timers down to one type, preserving
// order.
func (l *recordingListener) timersOfType(timerType capture.TimerType) []capture.Timer {
	var timers []capture.Timer
	for _, timer := range l.timers {
		if timer.Type == timerType {
			timers = append(timers, timer)
		}
	}
	return timers
}

// keyOf returns the key the engine announced for the given string, or zero.
func (l *recordingListener) keyOf(str string) uint64 {
	for key, s := range l.keyedStrings {
		if s == str {
			return key
		}
	}
	return 0
}

func (l *recordingListener) OnCaptureStarted(started *event.CaptureStarted, outputPath string, frameTrackFunctionIDs map[uint64]struct{}) {
	l.started = started
	l.startedOutputPath = outputPath
	l.startedFrameTrackIDs = frameTrackFunctionIDs
}

func (l *recordingListener) OnCaptureFinished(finished *event.CaptureFinished) {
	l.finished = finished
}

func (l *recordingListener) OnTimer(timer capture.Timer) {
	l.timers = append(l.timers, timer)
}

func (l *recordingListener) OnKeyAndString(key uint64, str string) {
	l.keyedStrings[key] = str
}

func (l *recordingListener) OnUniqueCallstack(callstackID uint64, callstack capture.CallstackInfo) {
	l.uniqueCallstacks[callstackID] = callstack
}

func (l *recordingListener) OnCallstackEvent(callstackEvent capture.CallstackEvent) {
	l.callstackEvents = append(l.callstackEvents, callstackEvent)
}

func (l *recordingListener) OnThreadName(threadID int32, name string) {
	l.threadNames[threadID] = name
}

func (l *recordingListener) OnThreadStateSlice(slice capture.ThreadStateSlice) {
	l.threadStateSlices = append(l.threadStateSlices, slice)
}

func (l *recordingListener) OnAddressInfo(addressInfo capture.AddressInfo) {
	l.addressInfos = append(l.addressInfos, addressInfo)
}

func (l *recordingListener) OnUniqueTracepointInfo(key uint64, info event.TracepointInfo) {
	l.uniqueTracepointInfos[key] = info
}

func (l *recordingListener) OnTracepointEvent(tracepointEvent capture.TracepointEvent) {
	l.tracepointEvents = append(l.tracepointEvents, tracepointEvent)
}

func (l *recordingListener) OnModuleUpdate(timestampNS uint64, module event.ModuleInfo) {
	l.moduleUpdates = append(l.moduleUpdates, module)
}

func (l *recordingListener) OnModulesSnapshot(timestampNS uint64, modules []event.ModuleInfo) {
	l.modulesSnapshots = append(l.modulesSnapshots, modules)
}

func (l *recordingListener) OnApiStringEvent(apiString capture.ApiStringEvent) {
	l.apiStringEvents = append(l.apiStringEvents, apiString)
}

func (l *recordingListener) OnApiTrackValue(trackValue capture.ApiTrackValue) {
	l.apiTrackValues = append(l.apiTrackValues, trackValue)
}

func (l *recordingListener) OnWarningEvent(warning *event.WarningEvent) {
	l.warnings = append(l.warnings, warning)
}

func (l *recordingListener) OnClockResolutionEvent(clockResolution *event.ClockResolutionEvent) {}

func (l *recordingListener) OnErrorsWithPerfEventOpenEvent(errs *event.ErrorsWithPerfEventOpenEvent) {
}

func (l *recordingListener) OnErrorEnablingApiEvent(err *event.ErrorEnablingApiEvent) {}

func (l *recordingListener) OnErrorEnablingUserSpaceInstrumentationEvent(err *event.ErrorEnablingUserSpaceInstrumentationEvent) {
}

func (l *recordingListener) OnWarningInstrumentingWithUserSpaceInstrumentationEvent(warning *event.WarningInstrumentingWithUserSpaceInstrumentationEvent) {
}

func (l *recordingListener) OnLostPerfRecordsEvent(lost *event.LostPerfRecordsEvent) {
	l.lost = append(l.lost, lost)
}

func (l *recordingListener) OnOutOfOrderEventsDiscardedEvent(discarded *event.OutOfOrderEventsDiscardedEvent) {
	l.discarded = append(l.discarded, discarded)
}
