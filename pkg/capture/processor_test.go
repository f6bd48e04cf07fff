package capture_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/event"
)

func TestNewProcessorRequiresListener(t *testing.T) {
	_, err := capture.NewProcessor(nil)
	require.ErrorIs(t, err, capture.ErrListenerNil)
}

func TestProcessEventNilIsFatal(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(nil)
	require.ErrorIs(t, err, capture.ErrEventNotSet)
}

func TestCaptureStartedForwardsOptions(t *testing.T) {
	listener := newRecordingListener()
	frameTrackIDs := map[uint64]struct{}{13: {}}
	processor, err := capture.NewProcessor(
		listener,
		capture.WithOutputPath("/tmp/game.capture"),
		capture.WithFrameTrackFunctionIDs(frameTrackIDs),
	)
	require.NoError(t, err)

	started := &event.CaptureStarted{ProcessID: 42, ExecutablePath: "/usr/bin/game"}
	require.NoError(t, processor.ProcessEvent(started))
	require.NoError(t, processor.ProcessEvent(&event.CaptureFinished{Status: event.CaptureStatusSuccessful}))

	require.Equal(t, started, listener.started)
	require.Equal(t, "/tmp/game.capture", listener.startedOutputPath)
	require.Equal(t, frameTrackIDs, listener.startedFrameTrackIDs)
	require.NotNil(t, listener.finished)
}

func TestSchedulingSliceBecomesCoreActivityTimer(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.SchedulingSlice{
		ProcessID:      42,
		ThreadID:       24,
		Core:           2,
		DurationNS:     97,
		OutTimestampNS: 100,
	})
	require.NoError(t, err)

	require.Len(t, listener.timers, 1)
	timer := listener.timers[0]
	require.Equal(t, uint64(3), timer.StartNS)
	require.Equal(t, uint64(100), timer.EndNS)
	require.Equal(t, int32(42), timer.ProcessID)
	require.Equal(t, int32(24), timer.ThreadID)
	require.Equal(t, int32(2), timer.Processor)
	require.Equal(t, int32(2), timer.Depth)
	require.Equal(t, capture.TimerCoreActivity, timer.Type)
}

func TestInternedStringFirstBindingWins(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 7, Intern: "first"}))
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 7, Intern: "second"}))

	require.Equal(t, map[uint64]string{7: "first"}, listener.keyedStrings)
}

func TestCallstackSampleRequiresInternedCallstack(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.CallstackSample{TimestampNS: 100, CallstackID: 9})
	require.ErrorIs(t, err, capture.ErrCallstackNotInterned)
}

func TestCallstackDeliveredOncePerID(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.InternedCallstack{
		Key: 9,
		Intern: event.Callstack{
			PCs:  []uint64{0x1000, 0x2000, 0x3000},
			Type: event.CallstackDwarfUnwindingError,
		},
	})
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(&event.CallstackSample{TimestampNS: 100, ThreadID: 24, CallstackID: 9}))
	require.NoError(t, processor.ProcessEvent(&event.CallstackSample{TimestampNS: 200, ThreadID: 24, CallstackID: 9}))

	require.Len(t, listener.uniqueCallstacks, 1)
	callstack := listener.uniqueCallstacks[9]
	require.Equal(t, []uint64{0x1000, 0x2000, 0x3000}, callstack.Frames)
	require.Equal(t, event.CallstackDwarfUnwindingError, callstack.Type)

	require.Len(t, listener.callstackEvents, 2)
	require.Equal(t, uint64(100), listener.callstackEvents[0].TimestampNS)
	require.Equal(t, uint64(200), listener.callstackEvents[1].TimestampNS)
	require.Equal(t, uint64(9), listener.callstackEvents[0].CallstackID)
}

func TestFunctionCallBecomesTimer(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.FunctionCall{
		ProcessID:      42,
		ThreadID:       24,
		FunctionID:     13,
		DurationNS:     40,
		EndTimestampNS: 100,
		Depth:          3,
		ReturnValue:    77,
		Registers:      []uint64{1, 2, 3},
	})
	require.NoError(t, err)

	require.Len(t, listener.timers, 1)
	timer := listener.timers[0]
	require.Equal(t, uint64(60), timer.StartNS)
	require.Equal(t, uint64(100), timer.EndNS)
	require.Equal(t, int32(3), timer.Depth)
	require.Equal(t, capture.TimerNone, timer.Type)
	require.Equal(t, uint64(13), timer.FunctionID)
	require.Equal(t, uint64(77), timer.UserDataKey)
	require.Equal(t, []uint64{1, 2, 3}, timer.Registers)
}

func TestThreadNamesSnapshotForwardsEachName(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.ThreadNamesSnapshot{
		TimestampNS: 100,
		ThreadNames: []event.ThreadName{
			{ThreadID: 1, Name: "main"},
			{ThreadID: 2, Name: "render"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, map[int32]string{1: "main", 2: "render"}, listener.threadNames)
}

func TestThreadStateSliceMapsStates(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.ThreadStateSlice{
		ThreadID:       24,
		State:          event.ThreadStateUninterruptibleSleep,
		DurationNS:     30,
		EndTimestampNS: 100,
	})
	require.NoError(t, err)

	require.Len(t, listener.threadStateSlices, 1)
	slice := listener.threadStateSlices[0]
	require.Equal(t, capture.ThreadStateUninterruptibleSleep, slice.State)
	require.Equal(t, uint64(70), slice.BeginTimestampNS)
	require.Equal(t, uint64(100), slice.EndTimestampNS)
}

func TestThreadStateSliceRejectsUnknownState(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.ThreadStateSlice{ThreadID: 24, State: event.ThreadState(99)})
	require.ErrorIs(t, err, capture.ErrUnknownThreadState)
}

func TestAddressInfoDemanglesFunctionName(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 1, Intern: "_ZN3foo3barEv"}))
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 2, Intern: "/usr/lib/libgame.so"}))

	err = processor.ProcessEvent(&event.AddressInfo{
		AbsoluteAddress:  0x1000,
		OffsetInFunction: 0x10,
		FunctionNameKey:  1,
		ModuleNameKey:    2,
	})
	require.NoError(t, err)

	require.Len(t, listener.addressInfos, 1)
	info := listener.addressInfos[0]
	require.Equal(t, "foo::bar()", info.FunctionName)
	require.Equal(t, "/usr/lib/libgame.so", info.ModulePath)
	require.Equal(t, uint64(0x1000), info.AbsoluteAddress)
	require.Equal(t, uint64(0x10), info.OffsetInFunction)
}

func TestAddressInfoRequiresInternedStrings(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.AddressInfo{FunctionNameKey: 1, ModuleNameKey: 2})
	require.ErrorIs(t, errors.Cause(err), capture.ErrStringNotInterned)
}

func TestGpuJobDecomposesIntoQueueTimers(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 5, Intern: "gfx"}))

	err = processor.ProcessEvent(&event.GpuJob{
		ProcessID:           42,
		ThreadID:            24,
		Depth:               1,
		TimelineKey:         5,
		SubmitTimeNS:        10,
		SchedRunTimeNS:      20,
		HardwareStartTimeNS: 30,
		FenceSignaledTimeNS: 40,
	})
	require.NoError(t, err)

	timers := listener.timersOfType(capture.TimerGpuActivity)
	require.Len(t, timers, 3)

	require.Equal(t, uint64(10), timers[0].StartNS)
	require.Equal(t, uint64(20), timers[0].EndNS)
	require.Equal(t, listener.keyOf("sw queue"), timers[0].UserDataKey)

	require.Equal(t, uint64(20), timers[1].StartNS)
	require.Equal(t, uint64(30), timers[1].EndNS)
	require.Equal(t, listener.keyOf("hw queue"), timers[1].UserDataKey)

	require.Equal(t, uint64(30), timers[2].StartNS)
	require.Equal(t, uint64(40), timers[2].EndNS)
	require.Equal(t, listener.keyOf("hw execution"), timers[2].UserDataKey)

	for _, timer := range timers {
		require.Equal(t, uint64(5), timer.TimelineKey)
		require.Equal(t, int32(1), timer.Depth)
	}
}

func TestMemoryUsageEventSystemOnly(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.MemoryUsageEvent{
		TimestampNS: 100,
		SystemMemory: &event.SystemMemoryUsage{
			TotalKB:     16384,
			FreeKB:      4096,
			AvailableKB: 8192,
			BuffersKB:   512,
			CachedKB:    -1,
		},
	})
	require.NoError(t, err)

	require.Len(t, listener.timers, 1)
	timer := listener.timers[0]
	require.Equal(t, capture.TimerSystemMemoryUsage, timer.Type)
	require.Equal(t, uint64(100), timer.StartNS)
	require.Equal(t, uint64(100), timer.EndNS)
	require.Equal(t, []uint64{16384, 4096, 8192, 512, ^uint64(0)}, timer.Registers)
}

func TestMemoryUsageEventFullSample(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	err = processor.ProcessEvent(&event.MemoryUsageEvent{
		TimestampNS: 100,
		SystemMemory: &event.SystemMemoryUsage{
			TotalKB:    16384,
			PgFault:    1000,
			PgMajFault: 10,
		},
		CGroupMemory: &event.CGroupMemoryUsage{
			CGroupName:      "user.slice",
			LimitBytes:      1 << 30,
			RssBytes:        1 << 20,
			MappedFileBytes: 1 << 10,
			PgFault:         500,
			PgMajFault:      5,
		},
		ProcessMemory: &event.ProcessMemoryUsage{
			ProcessID: 42,
			RssAnonKB: 2048,
			MinFlt:    300,
			MajFlt:    3,
		},
	})
	require.NoError(t, err)

	require.Len(t, listener.timers, 3)
	require.Equal(t, capture.TimerSystemMemoryUsage, listener.timers[0].Type)
	require.Equal(t, capture.TimerCGroupAndProcessMemoryUsage, listener.timers[1].Type)
	require.Equal(t, capture.TimerPageFaults, listener.timers[2].Type)

	cgroupNameKey := listener.keyOf("user.slice")
	require.NotZero(t, cgroupNameKey)

	cgroupTimer := listener.timers[1]
	require.Equal(t, int32(42), cgroupTimer.ProcessID)
	require.Equal(t,
		[]uint64{cgroupNameKey, 1 << 30, 1 << 20, 1 << 10, 2048},
		cgroupTimer.Registers)

	pageFaultsTimer := listener.timers[2]
	require.Equal(t, int32(42), pageFaultsTimer.ProcessID)
	require.Equal(t,
		[]uint64{1000, 10, cgroupNameKey, 500, 5, 300, 3},
		pageFaultsTimer.Registers)
}

func TestTracepointEventForwarded(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(&event.InternedTracepointInfo{
		Key:    3,
		Intern: event.TracepointInfo{Category: "sched", Name: "sched_switch"},
	}))
	require.NoError(t, processor.ProcessEvent(&event.TracepointEvent{
		ProcessID:         42,
		ThreadID:          24,
		TimestampNS:       100,
		CPU:               1,
		TracepointInfoKey: 3,
	}))

	require.Equal(t, event.TracepointInfo{Category: "sched", Name: "sched_switch"}, listener.uniqueTracepointInfos[3])
	require.Len(t, listener.tracepointEvents, 1)
	require.Equal(t, uint64(3), listener.tracepointEvents[0].TracepointInfoKey)
	require.Equal(t, int32(1), listener.tracepointEvents[0].CPU)
}
