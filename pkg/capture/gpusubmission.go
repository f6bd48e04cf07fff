package capture

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/tufeigunchu/captrace/pkg/event"
)

// timeline is an ordered map from timestamp to value, backed by parallel
// sorted slices. The matcher holds a handful of in-flight entries per thread,
// so binary search plus slice insertion beats a tree here.
type timeline[V any] struct {
	keys []uint64
	vals []V
}

func (t *timeline[V]) set(key uint64, val V) {
	i := sort.Search(len(t.keys), func(i int) bool { return t.keys[i] >= key })
	if i < len(t.keys) && t.keys[i] == key {
		t.vals[i] = val
		return
	}
	t.keys = append(t.keys, 0)
	t.vals = append(t.vals, val)
	copy(t.keys[i+1:], t.keys[i:])
	copy(t.vals[i+1:], t.vals[i:])
	t.keys[i] = key
	t.vals[i] = val
}

func (t *timeline[V]) remove(key uint64) {
	i := sort.Search(len(t.keys), func(i int) bool { return t.keys[i] >= key })
	if i == len(t.keys) || t.keys[i] != key {
		return
	}
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	t.vals = append(t.vals[:i], t.vals[i+1:]...)
}

// ceil returns the index of the first entry with key >= the given key.
func (t *timeline[V]) ceil(key uint64) (int, bool) {
	i := sort.Search(len(t.keys), func(i int) bool { return t.keys[i] >= key })
	return i, i < len(t.keys)
}

// floor returns the index of the last entry with key <= the given key.
func (t *timeline[V]) floor(key uint64) (int, bool) {
	i := sort.Search(len(t.keys), func(i int) bool { return t.keys[i] > key })
	return i - 1, i > 0
}

func (t *timeline[V]) empty() bool {
	return len(t.keys) == 0
}

// SubmissionMatcher correlates the two independently captured halves of GPU
// work: driver-side GpuJob records and Vulkan-layer GpuQueueSubmission
// records. The two arrive in no guaranteed relative order, so each side is
// parked until its counterpart shows up; a pair matches when the job's submit
// time falls inside the submission's pre/post CPU timestamp bracket on the
// same thread. Matched pairs yield command-buffer and debug-marker timers
// with GPU timestamps rebased onto the CPU clock.
type SubmissionMatcher struct {
	logger log.Logger

	// Earliest event timestamp observed so far, fed by the dispatcher. Used
	// as the start of timers whose true begin predates the capture.
	beginCaptureTimeNS uint64

	jobsByTid        map[int32]*timeline[*event.GpuJob]
	submissionsByTid map[int32]*timeline[*event.GpuQueueSubmission]

	// Per thread and post-submission timestamp, how many begin markers of a
	// submission still await their end marker. A submission and its job stay
	// parked until this drains to zero.
	pendingBeginMarkers map[int32]map[uint64]uint32
}

func NewSubmissionMatcher(logger log.Logger) *SubmissionMatcher {
	return &SubmissionMatcher{
		logger:              logger,
		beginCaptureTimeNS:  math.MaxUint64,
		jobsByTid:           make(map[int32]*timeline[*event.GpuJob]),
		submissionsByTid:    make(map[int32]*timeline[*event.GpuQueueSubmission]),
		pendingBeginMarkers: make(map[int32]map[uint64]uint32),
	}
}

// UpdateBeginCaptureTime lowers the matcher's estimate of the capture start
// to the given timestamp if it is earlier than everything seen so far.
func (m *SubmissionMatcher) UpdateBeginCaptureTime(timestampNS uint64) {
	if timestampNS < m.beginCaptureTimeNS {
		m.beginCaptureTimeNS = timestampNS
	}
}

// ProcessJob registers a driver-side job and, if its Vulkan-layer counterpart
// already arrived, returns the timers of the matched pair.
func (m *SubmissionMatcher) ProcessJob(job *event.GpuJob, stringPool map[uint64]string, internString func(string) uint64) ([]Timer, error) {
	threadID := job.ThreadID
	submission := m.findMatchingSubmission(threadID, job.SubmitTimeNS)

	// Park the job if its submission has not arrived yet, or if the
	// submission has begin markers whose end markers may reference this job
	// from a later submission.
	if submission == nil || submission.NumBeginMarkers > 0 {
		m.jobTimeline(threadID).set(job.SubmitTimeNS, job)
	}
	if submission == nil {
		return nil, nil
	}

	postSubmissionTimestamp := submission.MetaInfo.PostSubmissionCPUTimestamp

	timers, err := m.matchedPairTimers(submission, job, stringPool, internString)
	if err != nil {
		return nil, err
	}

	if !m.hasPendingBeginMarkers(threadID, postSubmissionTimestamp) {
		m.deleteSubmission(threadID, postSubmissionTimestamp)
	}

	return timers, nil
}

// ProcessSubmission registers a Vulkan-layer submission and, if its
// driver-side counterpart already arrived, returns the timers of the matched
// pair.
func (m *SubmissionMatcher) ProcessSubmission(submission *event.GpuQueueSubmission, stringPool map[uint64]string, internString func(string) uint64) ([]Timer, error) {
	threadID := submission.MetaInfo.ThreadID
	preSubmissionTimestamp := submission.MetaInfo.PreSubmissionCPUTimestamp
	postSubmissionTimestamp := submission.MetaInfo.PostSubmissionCPUTimestamp

	job := m.findMatchingJob(threadID, preSubmissionTimestamp, postSubmissionTimestamp)

	// Park the submission if its job has not arrived yet, or if later
	// submissions will still resolve begin markers against it.
	if job == nil || submission.NumBeginMarkers > 0 {
		m.submissionTimeline(threadID).set(postSubmissionTimestamp, submission)
	}
	if submission.NumBeginMarkers > 0 {
		byPost, ok := m.pendingBeginMarkers[threadID]
		if !ok {
			byPost = make(map[uint64]uint32)
			m.pendingBeginMarkers[threadID] = byPost
		}
		byPost[postSubmissionTimestamp] = submission.NumBeginMarkers
	}
	if job == nil {
		return nil, nil
	}

	// The job may be deleted while resolving markers, take what we need now.
	submitTime := job.SubmitTimeNS

	timers, err := m.matchedPairTimers(submission, job, stringPool, internString)
	if err != nil {
		return nil, err
	}

	if !m.hasPendingBeginMarkers(threadID, postSubmissionTimestamp) {
		m.deleteJob(threadID, submitTime)
	}

	return timers, nil
}

func (m *SubmissionMatcher) jobTimeline(threadID int32) *timeline[*event.GpuJob] {
	tl, ok := m.jobsByTid[threadID]
	if !ok {
		tl = &timeline[*event.GpuJob]{}
		m.jobsByTid[threadID] = tl
	}
	return tl
}

func (m *SubmissionMatcher) submissionTimeline(threadID int32) *timeline[*event.GpuQueueSubmission] {
	tl, ok := m.submissionsByTid[threadID]
	if !ok {
		tl = &timeline[*event.GpuQueueSubmission]{}
		m.submissionsByTid[threadID] = tl
	}
	return tl
}

// findMatchingSubmission returns the parked submission whose pre/post CPU
// timestamp bracket contains the given submit time, or nil.
func (m *SubmissionMatcher) findMatchingSubmission(threadID int32, submitTimeNS uint64) *event.GpuQueueSubmission {
	tl, ok := m.submissionsByTid[threadID]
	if !ok {
		return nil
	}
	i, ok := tl.ceil(submitTimeNS)
	if !ok {
		return nil
	}
	submission := tl.vals[i]
	if submission.MetaInfo.PreSubmissionCPUTimestamp > submitTimeNS {
		return nil
	}
	return submission
}

// findMatchingJob returns the parked job whose submit time falls inside the
// given pre/post bracket, or nil. The bracket must single out exactly one
// job: the first at or after pre and the last at or before post have to be
// the same entry.
func (m *SubmissionMatcher) findMatchingJob(threadID int32, preSubmissionTimestampNS, postSubmissionTimestampNS uint64) *event.GpuJob {
	tl, ok := m.jobsByTid[threadID]
	if !ok {
		return nil
	}
	i, ok := tl.ceil(preSubmissionTimestampNS)
	if !ok {
		return nil
	}
	j, ok := tl.floor(postSubmissionTimestampNS)
	if !ok || i != j {
		return nil
	}
	return tl.vals[i]
}

func (m *SubmissionMatcher) matchedPairTimers(submission *event.GpuQueueSubmission, job *event.GpuJob, stringPool map[uint64]string, internString func(string) uint64) ([]Timer, error) {
	if _, ok := stringPool[job.TimelineKey]; !ok {
		return nil, errors.Wrapf(ErrStringNotInterned, "timeline key %d", job.TimelineKey)
	}

	firstCommandBuffer := extractFirstCommandBuffer(submission)

	// The first command buffer anchors the GPU-to-CPU clock rebasing. A zero
	// begin timestamp means the capture started mid-execution and there is no
	// anchor, so the whole submission is discarded.
	if firstCommandBuffer != nil && firstCommandBuffer.BeginGpuTimestampNS == 0 {
		return nil, nil
	}

	timers := m.commandBufferTimers(submission, job, firstCommandBuffer, internString)

	markerTimers, err := m.debugMarkerTimers(submission, job, firstCommandBuffer, stringPool)
	if err != nil {
		return nil, err
	}

	return append(timers, markerTimers...), nil
}

const commandBufferLabel = "command buffer"

func (m *SubmissionMatcher) commandBufferTimers(submission *event.GpuQueueSubmission, job *event.GpuJob, firstCommandBuffer *event.GpuCommandBuffer, internString func(string) uint64) []Timer {
	textKey := internString(commandBufferLabel)

	var timers []Timer
	for i := range submission.SubmitInfos {
		for _, commandBuffer := range submission.SubmitInfos[i].CommandBuffers {
			timer := Timer{
				EndNS:       commandBuffer.EndGpuTimestampNS - firstCommandBuffer.BeginGpuTimestampNS + job.HardwareStartTimeNS,
				ProcessID:   submission.MetaInfo.ProcessID,
				ThreadID:    submission.MetaInfo.ThreadID,
				Depth:       job.Depth,
				Processor:   noProcessor,
				Type:        TimerGpuCommandBuffer,
				UserDataKey: textKey,
				TimelineKey: job.TimelineKey,
			}
			if commandBuffer.BeginGpuTimestampNS != 0 {
				timer.StartNS = commandBuffer.BeginGpuTimestampNS - firstCommandBuffer.BeginGpuTimestampNS + job.HardwareStartTimeNS
			} else {
				timer.StartNS = m.beginCaptureTimeNS
			}
			timers = append(timers, timer)
		}
	}

	return timers
}

func (m *SubmissionMatcher) debugMarkerTimers(submission *event.GpuQueueSubmission, job *event.GpuJob, firstCommandBuffer *event.GpuCommandBuffer, stringPool map[uint64]string) ([]Timer, error) {
	if len(submission.CompletedMarkers) == 0 {
		return nil, nil
	}
	if firstCommandBuffer == nil {
		return nil, ErrNoCommandBuffer
	}

	meta := submission.MetaInfo

	// Resolving a begin marker may want to drop its parked submission, which
	// can be the very submission being processed. Decrements are collected
	// and applied after the loop.
	type pendingDecrement struct {
		threadID                int32
		submitTimeNS            uint64
		postSubmissionTimestamp uint64
	}
	var decrements []pendingDecrement

	var timers []Timer
	for i := range submission.CompletedMarkers {
		marker := &submission.CompletedMarkers[i]
		timer := Timer{
			EndNS:       marker.EndGpuTimestampNS - firstCommandBuffer.BeginGpuTimestampNS + job.HardwareStartTimeNS,
			ProcessID:   meta.ProcessID,
			Depth:       marker.Depth,
			Processor:   noProcessor,
			Type:        TimerGpuDebugMarker,
			UserDataKey: marker.TextKey,
			TimelineKey: job.TimelineKey,
		}

		if marker.BeginMarker != nil {
			beginMeta := marker.BeginMarker.MetaInfo

			// The begin half may live on an earlier submission of the same
			// queue. When the snapshotted meta info names this submission,
			// use it directly; otherwise the earlier submission must still
			// be parked, or the marker cannot be placed at all.
			beginFirstCommandBuffer := firstCommandBuffer
			if beginMeta != meta {
				beginSubmission := m.findMatchingSubmission(beginMeta.ThreadID, beginMeta.PostSubmissionCPUTimestamp)
				if beginSubmission == nil {
					m.logger.Warn().
						Int32("tid", beginMeta.ThreadID).
						Uint64("text_key", marker.TextKey).
						Msg("no parked submission for begin marker, discarding debug marker timer")
					continue
				}
				beginFirstCommandBuffer = extractFirstCommandBuffer(beginSubmission)
				if beginFirstCommandBuffer == nil {
					return nil, ErrNoCommandBuffer
				}
			}

			beginJob := m.findMatchingJob(beginMeta.ThreadID, beginMeta.PreSubmissionCPUTimestamp, beginMeta.PostSubmissionCPUTimestamp)

			var beginSubmitTimeNS uint64
			if beginJob != nil {
				// Rebase the begin GPU timestamp onto the CPU clock,
				// assuming the first command buffer started executing at the
				// job's hardware start time.
				timer.StartNS = marker.BeginMarker.GpuTimestampNS + beginJob.HardwareStartTimeNS - beginFirstCommandBuffer.BeginGpuTimestampNS
				beginSubmitTimeNS = beginJob.SubmitTimeNS
			} else {
				// The begin submission was captured but its driver job was
				// not.
				timer.StartNS = m.beginCaptureTimeNS
			}

			if beginMeta.ThreadID == meta.ThreadID {
				timer.ThreadID = beginMeta.ThreadID
			} else {
				timer.ThreadID = UnknownThreadID
			}

			decrements = append(decrements, pendingDecrement{
				threadID:                beginMeta.ThreadID,
				submitTimeNS:            beginSubmitTimeNS,
				postSubmissionTimestamp: beginMeta.PostSubmissionCPUTimestamp,
			})
		} else {
			timer.StartNS = m.beginCaptureTimeNS
			timer.ThreadID = UnknownThreadID
		}

		if marker.Color != nil {
			timer.Color = Color{
				Red:   uint8(marker.Color.Red * 255),
				Green: uint8(marker.Color.Green * 255),
				Blue:  uint8(marker.Color.Blue * 255),
				Alpha: uint8(marker.Color.Alpha * 255),
			}
		}

		text, ok := stringPool[marker.TextKey]
		if !ok {
			return nil, errors.Wrapf(ErrStringNotInterned, "debug marker text key %d", marker.TextKey)
		}
		if groupID, ok := extractDXVKGroupID(text); ok {
			timer.GroupID = groupID
		}

		timers = append(timers, timer)
	}

	for _, d := range decrements {
		m.decrementPendingBeginMarkers(d.threadID, d.submitTimeNS, d.postSubmissionTimestamp)
	}

	return timers, nil
}

func (m *SubmissionMatcher) hasPendingBeginMarkers(threadID int32, postSubmissionTimestampNS uint64) bool {
	byPost, ok := m.pendingBeginMarkers[threadID]
	if !ok {
		return false
	}
	_, ok = byPost[postSubmissionTimestampNS]
	return ok
}

func (m *SubmissionMatcher) decrementPendingBeginMarkers(threadID int32, submitTimeNS, postSubmissionTimestampNS uint64) {
	byPost, ok := m.pendingBeginMarkers[threadID]
	if !ok {
		return
	}
	remaining, ok := byPost[postSubmissionTimestampNS]
	if !ok {
		return
	}
	remaining--
	byPost[postSubmissionTimestampNS] = remaining
	if remaining > 0 {
		return
	}

	delete(byPost, postSubmissionTimestampNS)
	if len(byPost) == 0 {
		delete(m.pendingBeginMarkers, threadID)
		m.deleteJob(threadID, submitTimeNS)
		m.deleteSubmission(threadID, postSubmissionTimestampNS)
	}
}

func (m *SubmissionMatcher) deleteJob(threadID int32, submitTimeNS uint64) {
	tl, ok := m.jobsByTid[threadID]
	if !ok {
		return
	}
	tl.remove(submitTimeNS)
	if tl.empty() {
		delete(m.jobsByTid, threadID)
	}
}

func (m *SubmissionMatcher) deleteSubmission(threadID int32, postSubmissionTimestampNS uint64) {
	tl, ok := m.submissionsByTid[threadID]
	if !ok {
		return
	}
	tl.remove(postSubmissionTimestampNS)
	if tl.empty() {
		delete(m.submissionsByTid, threadID)
	}
}

func extractFirstCommandBuffer(submission *event.GpuQueueSubmission) *event.GpuCommandBuffer {
	for i := range submission.SubmitInfos {
		if len(submission.SubmitInfos[i].CommandBuffers) > 0 {
			return &submission.SubmitInfos[i].CommandBuffers[0]
		}
	}
	return nil
}

// extractDXVKGroupID pulls the group id DXVK instrumentation encodes into
// its debug labels, shaped 'DXVK__vkFunctionName#GROUP_ID'.
func extractDXVKGroupID(label string) (uint64, bool) {
	if !strings.Contains(label, "DXVK__") {
		return 0, false
	}
	hash := strings.LastIndexByte(label, '#')
	if hash < 0 {
		return 0, false
	}
	groupID, err := strconv.ParseUint(label[hash+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return groupID, true
}
