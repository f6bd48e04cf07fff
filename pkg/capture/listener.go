// Package capture implements the decode-and-correlate engine of the
// profiling client: it consumes wire capture events one at a time and turns
// them into timers, interned definitions and diagnostic records for a
// Listener. One Processor instance owns all of its state and must only be
// fed from a single goroutine.
package capture

import (
	"github.com/tufeigunchu/captrace/pkg/event"
)

// Listener is the sink for everything the engine derives from the event
// stream. The engine borrows the listener for its whole lifetime and calls it
// synchronously from ProcessEvent; implementations decide what to do with
// the facts (render, aggregate, persist).
type Listener interface {
	OnCaptureStarted(started *event.CaptureStarted, outputPath string, frameTrackFunctionIDs map[uint64]struct{})
	OnCaptureFinished(finished *event.CaptureFinished)

	OnTimer(timer Timer)
	OnKeyAndString(key uint64, str string)
	OnUniqueCallstack(callstackID uint64, callstack CallstackInfo)
	OnCallstackEvent(callstackEvent CallstackEvent)
	OnThreadName(threadID int32, name string)
	OnThreadStateSlice(slice ThreadStateSlice)
	OnAddressInfo(addressInfo AddressInfo)
	OnUniqueTracepointInfo(key uint64, info event.TracepointInfo)
	OnTracepointEvent(tracepointEvent TracepointEvent)
	OnModuleUpdate(timestampNS uint64, module event.ModuleInfo)
	OnModulesSnapshot(timestampNS uint64, modules []event.ModuleInfo)
	OnApiStringEvent(apiString ApiStringEvent)
	OnApiTrackValue(trackValue ApiTrackValue)

	OnWarningEvent(warning *event.WarningEvent)
	OnClockResolutionEvent(clockResolution *event.ClockResolutionEvent)
	OnErrorsWithPerfEventOpenEvent(errs *event.ErrorsWithPerfEventOpenEvent)
	OnErrorEnablingApiEvent(err *event.ErrorEnablingApiEvent)
	OnErrorEnablingUserSpaceInstrumentationEvent(err *event.ErrorEnablingUserSpaceInstrumentationEvent)
	OnWarningInstrumentingWithUserSpaceInstrumentationEvent(warning *event.WarningInstrumentingWithUserSpaceInstrumentationEvent)
	OnLostPerfRecordsEvent(lost *event.LostPerfRecordsEvent)
	OnOutOfOrderEventsDiscardedEvent(discarded *event.OutOfOrderEventsDiscardedEvent)
}
