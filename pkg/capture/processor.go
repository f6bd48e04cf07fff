package capture

import (
	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/tufeigunchu/captrace/internal/utils"
	"github.com/tufeigunchu/captrace/pkg/event"
)

// EventProcessor consumes one decoded capture event at a time, in arrival
// order. Implementations are not safe for concurrent use.
type EventProcessor interface {
	ProcessEvent(ev event.CaptureEvent) error
}

// Processor is the event dispatcher: it routes every capture-event kind to a
// handler that updates the intern pools, consults the GPU submission matcher
// or the manual-instrumentation processor, and emits the derived facts to the
// Listener. All state is owned by the instance; a second Processor fed the
// same stream is fully independent.
type Processor struct {
	listener Listener
	logger   log.Logger

	outputPath            string
	frameTrackFunctionIDs map[uint64]struct{}

	// Intern pools. Entries are write-once: the first binding of a key wins
	// and a duplicate binding is an anomaly, not an error.
	strings    map[uint64]string
	callstacks map[uint64]event.Callstack

	// Callstack ids already forwarded to the listener, so the (potentially
	// large) resolved payload is delivered at most once.
	callstacksSent map[uint64]struct{}

	gpu *SubmissionMatcher
	api *ApiEventProcessor
}

// NewProcessor builds an engine instance feeding the given listener. The
// listener must outlive the processor; the processor never takes ownership.
func NewProcessor(listener Listener, opts ...ProcessorOption) (*Processor, error) {
	if listener == nil {
		return nil, ErrListenerNil
	}
	p := &Processor{
		listener:       listener,
		logger:         log.Nop(),
		strings:        make(map[uint64]string),
		callstacks:     make(map[uint64]event.Callstack),
		callstacksSent: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.gpu = NewSubmissionMatcher(p.logger)
	p.api = NewApiEventProcessor(listener, p.logger)

	return p, nil
}

// ProcessEvent dispatches one wire event. A returned error is a fatal
// precondition violation (protocol mismatch or corrupted stream); the caller
// must not feed further events after one.
func (p *Processor) ProcessEvent(ev event.CaptureEvent) error {
	switch ev := ev.(type) {
	case *event.CaptureStarted:
		p.listener.OnCaptureStarted(ev, p.outputPath, p.frameTrackFunctionIDs)
	case *event.CaptureFinished:
		p.listener.OnCaptureFinished(ev)
	case *event.SchedulingSlice:
		p.processSchedulingSlice(ev)
	case *event.InternedString:
		p.processInternedString(ev)
	case *event.InternedCallstack:
		p.processInternedCallstack(ev)
	case *event.CallstackSample:
		return p.processCallstackSample(ev)
	case *event.FunctionCall:
		p.processFunctionCall(ev)
	case *event.ThreadName:
		p.listener.OnThreadName(ev.ThreadID, ev.Name)
	case *event.ThreadNamesSnapshot:
		for i := range ev.ThreadNames {
			p.listener.OnThreadName(ev.ThreadNames[i].ThreadID, ev.ThreadNames[i].Name)
		}
	case *event.ThreadStateSlice:
		return p.processThreadStateSlice(ev)
	case *event.AddressInfo:
		return p.processAddressInfo(ev)
	case *event.InternedTracepointInfo:
		p.listener.OnUniqueTracepointInfo(ev.Key, ev.Intern)
	case *event.TracepointEvent:
		p.processTracepointEvent(ev)
	case *event.ModuleUpdate:
		p.listener.OnModuleUpdate(ev.TimestampNS, ev.Module)
	case *event.ModulesSnapshot:
		p.listener.OnModulesSnapshot(ev.TimestampNS, ev.Modules)
	case *event.MemoryUsageEvent:
		p.processMemoryUsageEvent(ev)
	case *event.GpuJob:
		return p.processGpuJob(ev)
	case *event.GpuQueueSubmission:
		return p.processGpuQueueSubmission(ev)
	case *event.ApiScopeStart:
		p.api.ProcessScopeStart(ev)
	case *event.ApiScopeStop:
		p.api.ProcessScopeStop(ev)
	case *event.ApiScopeStartAsync:
		p.api.ProcessScopeStartAsync(ev)
	case *event.ApiScopeStopAsync:
		p.api.ProcessScopeStopAsync(ev)
	case *event.ApiStringEvent:
		p.api.ProcessStringEvent(ev)
	case *event.ApiTrackDouble:
		p.api.ProcessTrackDouble(ev)
	case *event.ApiTrackFloat:
		p.api.ProcessTrackFloat(ev)
	case *event.ApiTrackInt:
		p.api.ProcessTrackInt(ev)
	case *event.ApiTrackInt64:
		p.api.ProcessTrackInt64(ev)
	case *event.ApiTrackUint:
		p.api.ProcessTrackUint(ev)
	case *event.ApiTrackUint64:
		p.api.ProcessTrackUint64(ev)
	case *event.WarningEvent:
		p.listener.OnWarningEvent(ev)
	case *event.ClockResolutionEvent:
		p.listener.OnClockResolutionEvent(ev)
	case *event.ErrorsWithPerfEventOpenEvent:
		p.listener.OnErrorsWithPerfEventOpenEvent(ev)
	case *event.ErrorEnablingApiEvent:
		p.listener.OnErrorEnablingApiEvent(ev)
	case *event.ErrorEnablingUserSpaceInstrumentationEvent:
		p.listener.OnErrorEnablingUserSpaceInstrumentationEvent(ev)
	case *event.WarningInstrumentingWithUserSpaceInstrumentationEvent:
		p.listener.OnWarningInstrumentingWithUserSpaceInstrumentationEvent(ev)
	case *event.LostPerfRecordsEvent:
		p.listener.OnLostPerfRecordsEvent(ev)
	case *event.OutOfOrderEventsDiscardedEvent:
		p.listener.OnOutOfOrderEventsDiscardedEvent(ev)
	default:
		// Guards against protocol/version drift: an event that decodes to no
		// known kind must not pass silently.
		return ErrEventNotSet
	}

	return nil
}

func (p *Processor) processSchedulingSlice(slice *event.SchedulingSlice) {
	inTimestampNS := slice.OutTimestampNS - slice.DurationNS

	p.gpu.UpdateBeginCaptureTime(inTimestampNS)

	// Core-activity timers are depth-keyed by core so they stack one per
	// core on the timeline.
	p.listener.OnTimer(Timer{
		StartNS:   inTimestampNS,
		EndNS:     slice.OutTimestampNS,
		ProcessID: slice.ProcessID,
		ThreadID:  slice.ThreadID,
		Processor: slice.Core,
		Depth:     slice.Core,
		Type:      TimerCoreActivity,
	})
}

func (p *Processor) processInternedString(interned *event.InternedString) {
	if existing, ok := p.strings[interned.Key]; ok {
		p.logger.Warn().
			Uint64("key", interned.Key).
			Str("existing", existing).
			Str("discarded", interned.Intern).
			Msg("duplicate interned string binding, keeping the first")
		return
	}
	p.strings[interned.Key] = interned.Intern
	p.listener.OnKeyAndString(interned.Key, interned.Intern)
}

func (p *Processor) processInternedCallstack(interned *event.InternedCallstack) {
	if _, ok := p.callstacks[interned.Key]; ok {
		p.logger.Warn().
			Uint64("key", interned.Key).
			Msg("duplicate interned callstack binding, keeping the first")
		return
	}
	p.callstacks[interned.Key] = interned.Intern
}

func (p *Processor) processCallstackSample(sample *event.CallstackSample) error {
	callstack, ok := p.callstacks[sample.CallstackID]
	if !ok {
		// Callstacks are always interned before being referenced; a miss
		// means the stream is corrupted.
		return errors.Wrapf(ErrCallstackNotInterned, "callstack id %d", sample.CallstackID)
	}

	p.sendCallstackIfNecessary(sample.CallstackID, callstack)

	p.gpu.UpdateBeginCaptureTime(sample.TimestampNS)

	p.listener.OnCallstackEvent(CallstackEvent{
		TimestampNS: sample.TimestampNS,
		CallstackID: sample.CallstackID,
		ThreadID:    sample.ThreadID,
	})

	return nil
}

func (p *Processor) sendCallstackIfNecessary(callstackID uint64, callstack event.Callstack) {
	if _, sent := p.callstacksSent[callstackID]; sent {
		return
	}
	p.callstacksSent[callstackID] = struct{}{}

	frames := make([]uint64, len(callstack.PCs))
	copy(frames, callstack.PCs)
	p.listener.OnUniqueCallstack(callstackID, CallstackInfo{
		Frames: frames,
		Type:   callstack.Type,
	})
}

func (p *Processor) processFunctionCall(call *event.FunctionCall) {
	beginTimestampNS := call.EndTimestampNS - call.DurationNS

	p.gpu.UpdateBeginCaptureTime(beginTimestampNS)

	timer := Timer{
		StartNS:     beginTimestampNS,
		EndNS:       call.EndTimestampNS,
		ProcessID:   call.ProcessID,
		ThreadID:    call.ThreadID,
		Depth:       call.Depth,
		Processor:   noProcessor,
		Type:        TimerNone,
		FunctionID:  call.FunctionID,
		UserDataKey: call.ReturnValue,
	}
	if len(call.Registers) > 0 {
		timer.Registers = make([]uint64, len(call.Registers))
		copy(timer.Registers, call.Registers)
	}
	p.listener.OnTimer(timer)
}

func (p *Processor) processThreadStateSlice(slice *event.ThreadStateSlice) error {
	state, ok := threadStateFromWire(slice.State)
	if !ok {
		return errors.Wrapf(ErrUnknownThreadState, "state %d", slice.State)
	}
	beginTimestampNS := slice.EndTimestampNS - slice.DurationNS

	p.gpu.UpdateBeginCaptureTime(beginTimestampNS)

	p.listener.OnThreadStateSlice(ThreadStateSlice{
		ThreadID:         slice.ThreadID,
		State:            state,
		BeginTimestampNS: beginTimestampNS,
		EndTimestampNS:   slice.EndTimestampNS,
	})

	return nil
}

func threadStateFromWire(state event.ThreadState) (ThreadState, bool) {
	switch state {
	case event.ThreadStateRunning:
		return ThreadStateRunning, true
	case event.ThreadStateRunnable:
		return ThreadStateRunnable, true
	case event.ThreadStateInterruptibleSleep:
		return ThreadStateInterruptibleSleep, true
	case event.ThreadStateUninterruptibleSleep:
		return ThreadStateUninterruptibleSleep, true
	case event.ThreadStateStopped:
		return ThreadStateStopped, true
	case event.ThreadStateTraced:
		return ThreadStateTraced, true
	case event.ThreadStateDead:
		return ThreadStateDead, true
	case event.ThreadStateZombie:
		return ThreadStateZombie, true
	case event.ThreadStateParked:
		return ThreadStateParked, true
	case event.ThreadStateIdle:
		return ThreadStateIdle, true
	}

	return 0, false
}

func (p *Processor) processAddressInfo(info *event.AddressInfo) error {
	functionName, ok := p.strings[info.FunctionNameKey]
	if !ok {
		return errors.Wrapf(ErrStringNotInterned, "function name key %d", info.FunctionNameKey)
	}
	moduleName, ok := p.strings[info.ModuleNameKey]
	if !ok {
		return errors.Wrapf(ErrStringNotInterned, "module name key %d", info.ModuleNameKey)
	}

	p.listener.OnAddressInfo(AddressInfo{
		AbsoluteAddress:  info.AbsoluteAddress,
		ModulePath:       moduleName,
		FunctionName:     demangle.Filter(functionName),
		OffsetInFunction: info.OffsetInFunction,
	})

	return nil
}

func (p *Processor) processTracepointEvent(ev *event.TracepointEvent) {
	p.gpu.UpdateBeginCaptureTime(ev.TimestampNS)

	p.listener.OnTracepointEvent(TracepointEvent{
		ProcessID:         ev.ProcessID,
		ThreadID:          ev.ThreadID,
		TimestampNS:       ev.TimestampNS,
		CPU:               ev.CPU,
		TracepointInfoKey: ev.TracepointInfoKey,
	})
}

const (
	swQueueLabel     = "sw queue"
	hwQueueLabel     = "hw queue"
	hwExecutionLabel = "hw execution"
)

func (p *Processor) processGpuJob(job *event.GpuJob) error {
	p.gpu.UpdateBeginCaptureTime(job.SubmitTimeNS)

	// The four job timestamps bridge pairwise into three spans: time on the
	// software queue, time on the hardware queue, and hardware execution.
	spans := [3]struct {
		label   string
		startNS uint64
		endNS   uint64
	}{
		{swQueueLabel, job.SubmitTimeNS, job.SchedRunTimeNS},
		{hwQueueLabel, job.SchedRunTimeNS, job.HardwareStartTimeNS},
		{hwExecutionLabel, job.HardwareStartTimeNS, job.FenceSignaledTimeNS},
	}
	for _, span := range spans {
		p.listener.OnTimer(Timer{
			StartNS:     span.startNS,
			EndNS:       span.endNS,
			ProcessID:   job.ProcessID,
			ThreadID:    job.ThreadID,
			Depth:       job.Depth,
			Processor:   noProcessor,
			Type:        TimerGpuActivity,
			UserDataKey: p.internString(span.label),
			TimelineKey: job.TimelineKey,
		})
	}

	timers, err := p.gpu.ProcessJob(job, p.strings, p.internString)
	if err != nil {
		return err
	}
	for _, timer := range timers {
		p.listener.OnTimer(timer)
	}

	return nil
}

func (p *Processor) processGpuQueueSubmission(submission *event.GpuQueueSubmission) error {
	timers, err := p.gpu.ProcessSubmission(submission, p.strings, p.internString)
	if err != nil {
		return err
	}
	for _, timer := range timers {
		p.listener.OnTimer(timer)
	}

	return nil
}

// internString interns a decoder-synthesized literal under a stable hash of
// its content, announcing the binding to the listener the first time.
func (p *Processor) internString(str string) uint64 {
	key := utils.Hash(str)
	if _, ok := p.strings[key]; !ok {
		p.strings[key] = str
		p.listener.OnKeyAndString(key, str)
	}

	return key
}
