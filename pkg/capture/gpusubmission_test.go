package capture_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tufeigunchu/captrace/pkg/capture"
	"github.com/tufeigunchu/captrace/pkg/event"
)

func gpuTestJob() *event.GpuJob {
	return &event.GpuJob{
		ProcessID:           42,
		ThreadID:            24,
		Depth:               1,
		TimelineKey:         5,
		SubmitTimeNS:        100,
		SchedRunTimeNS:      200,
		HardwareStartTimeNS: 300,
		FenceSignaledTimeNS: 400,
	}
}

func gpuTestSubmission() *event.GpuQueueSubmission {
	return &event.GpuQueueSubmission{
		MetaInfo: event.GpuQueueSubmissionMetaInfo{
			ProcessID:                  42,
			ThreadID:                   24,
			PreSubmissionCPUTimestamp:  90,
			PostSubmissionCPUTimestamp: 110,
		},
		SubmitInfos: []event.GpuSubmitInfo{{
			CommandBuffers: []event.GpuCommandBuffer{{
				BeginGpuTimestampNS: 1000,
				EndGpuTimestampNS:   1100,
			}},
		}},
	}
}

func newGpuTestProcessor(t *testing.T) (*capture.Processor, *recordingListener) {
	t.Helper()
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 5, Intern: "gfx"}))
	return processor, listener
}

func requireCommandBufferTimer(t *testing.T, listener *recordingListener) {
	t.Helper()
	timers := listener.timersOfType(capture.TimerGpuCommandBuffer)
	require.Len(t, timers, 1)
	timer := timers[0]
	require.Equal(t, uint64(300), timer.StartNS)
	require.Equal(t, uint64(400), timer.EndNS)
	require.Equal(t, int32(42), timer.ProcessID)
	require.Equal(t, int32(24), timer.ThreadID)
	require.Equal(t, int32(1), timer.Depth)
	require.Equal(t, uint64(5), timer.TimelineKey)
	require.Equal(t, listener.keyOf("command buffer"), timer.UserDataKey)
}

func TestGpuJobThenSubmissionProducesCommandBufferTimer(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)

	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	require.Empty(t, listener.timersOfType(capture.TimerGpuCommandBuffer))

	require.NoError(t, processor.ProcessEvent(gpuTestSubmission()))
	requireCommandBufferTimer(t, listener)
}

func TestGpuSubmissionThenJobProducesCommandBufferTimer(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)

	require.NoError(t, processor.ProcessEvent(gpuTestSubmission()))
	require.Empty(t, listener.timersOfType(capture.TimerGpuCommandBuffer))

	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	requireCommandBufferTimer(t, listener)
}

func TestGpuSubmissionOutsideJobBracketDoesNotMatch(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)

	job := gpuTestJob()
	job.SubmitTimeNS = 80 // before the pre-submission timestamp
	require.NoError(t, processor.ProcessEvent(job))
	require.NoError(t, processor.ProcessEvent(gpuTestSubmission()))

	require.Empty(t, listener.timersOfType(capture.TimerGpuCommandBuffer))
}

func TestGpuSubmissionWithZeroFirstBeginTimestampIsDiscarded(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)

	submission := gpuTestSubmission()
	submission.SubmitInfos[0].CommandBuffers[0].BeginGpuTimestampNS = 0
	require.NoError(t, processor.ProcessEvent(submission))
	require.NoError(t, processor.ProcessEvent(gpuTestJob()))

	require.Empty(t, listener.timersOfType(capture.TimerGpuCommandBuffer))
}

func TestGpuJobRequiresInternedTimeline(t *testing.T) {
	listener := newRecordingListener()
	processor, err := capture.NewProcessor(listener)
	require.NoError(t, err)

	require.NoError(t, processor.ProcessEvent(gpuTestSubmission()))
	err = processor.ProcessEvent(gpuTestJob())
	require.ErrorIs(t, err, capture.ErrStringNotInterned)
}

func TestGpuDebugMarkerWithinOneSubmission(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 8, Intern: "DXVK__vkCmdDraw#77"}))

	submission := gpuTestSubmission()
	submission.NumBeginMarkers = 1
	submission.CompletedMarkers = []event.GpuDebugMarker{{
		TextKey:           8,
		Depth:             2,
		EndGpuTimestampNS: 1050,
		Color:             &event.GpuDebugMarkerColor{Red: 1.0, Green: 0.5, Blue: 0.0, Alpha: 1.0},
		BeginMarker: &event.GpuDebugMarkerBeginInfo{
			MetaInfo:       submission.MetaInfo,
			GpuTimestampNS: 1010,
		},
	}}

	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	require.NoError(t, processor.ProcessEvent(submission))

	markers := listener.timersOfType(capture.TimerGpuDebugMarker)
	require.Len(t, markers, 1)
	marker := markers[0]
	require.Equal(t, uint64(310), marker.StartNS)
	require.Equal(t, uint64(350), marker.EndNS)
	require.Equal(t, int32(24), marker.ThreadID)
	require.Equal(t, int32(2), marker.Depth)
	require.Equal(t, capture.Color{Red: 255, Green: 127, Blue: 0, Alpha: 255}, marker.Color)
	require.Equal(t, uint64(8), marker.UserDataKey)
	require.Equal(t, uint64(77), marker.GroupID)
}

func TestGpuDebugMarkerAcrossSubmissions(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 8, Intern: "frame"}))

	// First submission carries the begin half of the marker.
	beginSubmission := gpuTestSubmission()
	beginSubmission.NumBeginMarkers = 1
	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	require.NoError(t, processor.ProcessEvent(beginSubmission))

	// Second submission on the same queue completes it.
	endJob := gpuTestJob()
	endJob.SubmitTimeNS = 500
	endJob.SchedRunTimeNS = 600
	endJob.HardwareStartTimeNS = 700
	endJob.FenceSignaledTimeNS = 800

	endSubmission := gpuTestSubmission()
	endSubmission.MetaInfo.PreSubmissionCPUTimestamp = 490
	endSubmission.MetaInfo.PostSubmissionCPUTimestamp = 510
	endSubmission.SubmitInfos[0].CommandBuffers[0].BeginGpuTimestampNS = 2000
	endSubmission.SubmitInfos[0].CommandBuffers[0].EndGpuTimestampNS = 2100
	endSubmission.CompletedMarkers = []event.GpuDebugMarker{{
		TextKey:           8,
		EndGpuTimestampNS: 2050,
		BeginMarker: &event.GpuDebugMarkerBeginInfo{
			MetaInfo:       beginSubmission.MetaInfo,
			GpuTimestampNS: 1010,
		},
	}}

	require.NoError(t, processor.ProcessEvent(endJob))
	require.NoError(t, processor.ProcessEvent(endSubmission))

	markers := listener.timersOfType(capture.TimerGpuDebugMarker)
	require.Len(t, markers, 1)
	marker := markers[0]
	// Start is rebased against the begin submission's job, end against the
	// completing one.
	require.Equal(t, uint64(310), marker.StartNS)
	require.Equal(t, uint64(750), marker.EndNS)
	require.Equal(t, int32(24), marker.ThreadID)
}

func TestGpuDebugMarkerWithoutBeginFallsBackToCaptureStart(t *testing.T) {
	processor, listener := newGpuTestProcessor(t)
	require.NoError(t, processor.ProcessEvent(&event.InternedString{Key: 8, Intern: "frame"}))

	// Establish the capture start time from an unrelated event.
	require.NoError(t, processor.ProcessEvent(&event.SchedulingSlice{
		ProcessID:      42,
		ThreadID:       24,
		DurationNS:     0,
		OutTimestampNS: 50,
	}))

	submission := gpuTestSubmission()
	submission.CompletedMarkers = []event.GpuDebugMarker{{
		TextKey:           8,
		EndGpuTimestampNS: 1050,
	}}

	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	require.NoError(t, processor.ProcessEvent(submission))

	markers := listener.timersOfType(capture.TimerGpuDebugMarker)
	require.Len(t, markers, 1)
	marker := markers[0]
	require.Equal(t, uint64(50), marker.StartNS)
	require.Equal(t, uint64(350), marker.EndNS)
	require.Equal(t, capture.UnknownThreadID, marker.ThreadID)
}

func TestGpuDebugMarkerRequiresInternedText(t *testing.T) {
	processor, _ := newGpuTestProcessor(t)

	submission := gpuTestSubmission()
	submission.CompletedMarkers = []event.GpuDebugMarker{{
		TextKey:           999,
		EndGpuTimestampNS: 1050,
	}}

	require.NoError(t, processor.ProcessEvent(gpuTestJob()))
	err := processor.ProcessEvent(submission)
	require.ErrorIs(t, err, capture.ErrStringNotInterned)
}
