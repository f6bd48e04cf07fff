package event_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tufeigunchu/captrace/pkg/event"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	events := []event.CaptureEvent{
		&event.CaptureStarted{ProcessID: 42, ExecutablePath: "/usr/bin/game", CaptureStartTimestampNS: 100},
		&event.SchedulingSlice{ProcessID: 42, ThreadID: 24, Core: 2, DurationNS: 97, OutTimestampNS: 100},
		&event.InternedCallstack{Key: 9, Intern: event.Callstack{PCs: []uint64{0x1000}, Type: event.CallstackComplete}},
		&event.GpuQueueSubmission{
			MetaInfo: event.GpuQueueSubmissionMetaInfo{ThreadID: 24, PreSubmissionCPUTimestamp: 90, PostSubmissionCPUTimestamp: 110},
			SubmitInfos: []event.GpuSubmitInfo{{
				CommandBuffers: []event.GpuCommandBuffer{{BeginGpuTimestampNS: 1000, EndGpuTimestampNS: 1100}},
			}},
			NumBeginMarkers: 1,
		},
		&event.MemoryUsageEvent{
			TimestampNS:  100,
			SystemMemory: &event.SystemMemoryUsage{TotalKB: 16384, CachedKB: -1},
		},
		&event.ApiScopeStart{TimestampNS: 100, ThreadID: 24, Name: "scope", ColorRGBA: 0xFF008040},
		&event.CaptureFinished{Status: event.CaptureStatusFailed, ErrorMessage: "target exited"},
	}

	for _, ev := range events {
		data, err := event.Marshal(ev)
		require.NoError(t, err)

		decoded, err := event.Unmarshal(data)
		require.NoError(t, err)
		require.Equal(t, ev, decoded)
	}
}

func TestMarshalNilEvent(t *testing.T) {
	_, err := event.Marshal(nil)
	require.ErrorIs(t, err, event.ErrEventNil)
}

func TestUnmarshalMissingKind(t *testing.T) {
	_, err := event.Unmarshal([]byte(`{"payload":{}}`))
	require.ErrorIs(t, err, event.ErrKindNotSet)
}

func TestUnmarshalUnknownKind(t *testing.T) {
	_, err := event.Unmarshal([]byte(`{"kind":"not_a_kind","payload":{}}`))
	require.ErrorIs(t, err, event.ErrUnknownKind)
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := event.Unmarshal([]byte("not json"))
	require.Error(t, err)
}
