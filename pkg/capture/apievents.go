package capture

import (
	log "github.com/rs/zerolog"

	"github.com/tufeigunchu/captrace/pkg/event"
)

// ApiEventProcessor pairs manual-instrumentation scope events into timers.
// Synchronous scopes nest per thread, so a stop always closes the innermost
// open scope of its thread; asynchronous scopes are paired by caller-supplied
// id across threads. Stops with no matching start (the start predates the
// capture) are dropped.
type ApiEventProcessor struct {
	listener Listener
	logger   log.Logger

	syncScopes  map[int32][]*event.ApiScopeStart
	asyncScopes map[uint64]*event.ApiScopeStartAsync
}

func NewApiEventProcessor(listener Listener, logger log.Logger) *ApiEventProcessor {
	return &ApiEventProcessor{
		listener:    listener,
		logger:      logger,
		syncScopes:  make(map[int32][]*event.ApiScopeStart),
		asyncScopes: make(map[uint64]*event.ApiScopeStartAsync),
	}
}

func (p *ApiEventProcessor) ProcessScopeStart(start *event.ApiScopeStart) {
	p.syncScopes[start.ThreadID] = append(p.syncScopes[start.ThreadID], start)
}

func (p *ApiEventProcessor) ProcessScopeStop(stop *event.ApiScopeStop) {
	stack := p.syncScopes[stop.ThreadID]
	if len(stack) == 0 {
		p.logger.Debug().
			Int32("tid", stop.ThreadID).
			Uint64("timestamp_ns", stop.TimestampNS).
			Msg("scope stop without matching start, dropping")
		return
	}
	start := stack[len(stack)-1]
	p.syncScopes[stop.ThreadID] = stack[:len(stack)-1]

	p.listener.OnTimer(Timer{
		StartNS:           start.TimestampNS,
		EndNS:             stop.TimestampNS,
		ProcessID:         stop.ProcessID,
		ThreadID:          stop.ThreadID,
		Depth:             int32(len(stack) - 1),
		Processor:         noProcessor,
		Type:              TimerApiScope,
		GroupID:           start.GroupID,
		ApiScopeName:      start.Name,
		AddressInFunction: start.AddressInFunction,
		Color:             colorFromRGBA(start.ColorRGBA),
	})
}

func (p *ApiEventProcessor) ProcessScopeStartAsync(start *event.ApiScopeStartAsync) {
	p.asyncScopes[start.ID] = start
}

func (p *ApiEventProcessor) ProcessScopeStopAsync(stop *event.ApiScopeStopAsync) {
	start, ok := p.asyncScopes[stop.ID]
	if !ok {
		p.logger.Debug().
			Uint64("id", stop.ID).
			Uint64("timestamp_ns", stop.TimestampNS).
			Msg("async scope stop without matching start, dropping")
		return
	}
	delete(p.asyncScopes, stop.ID)

	p.listener.OnTimer(Timer{
		StartNS:           start.TimestampNS,
		EndNS:             stop.TimestampNS,
		ProcessID:         stop.ProcessID,
		ThreadID:          stop.ThreadID,
		Processor:         noProcessor,
		Type:              TimerApiScopeAsync,
		ApiScopeName:      start.Name,
		AsyncScopeID:      stop.ID,
		AddressInFunction: start.AddressInFunction,
		Color:             colorFromRGBA(start.ColorRGBA),
	})
}

func (p *ApiEventProcessor) ProcessStringEvent(ev *event.ApiStringEvent) {
	p.listener.OnApiStringEvent(ApiStringEvent{
		TimestampNS:  ev.TimestampNS,
		ProcessID:    ev.ProcessID,
		ThreadID:     ev.ThreadID,
		AsyncScopeID: ev.ID,
		Name:         ev.Name,
	})
}

func (p *ApiEventProcessor) ProcessTrackDouble(ev *event.ApiTrackDouble) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueDouble,
		DataDouble:  ev.Data,
	})
}

func (p *ApiEventProcessor) ProcessTrackFloat(ev *event.ApiTrackFloat) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueFloat,
		DataFloat:   ev.Data,
	})
}

func (p *ApiEventProcessor) ProcessTrackInt(ev *event.ApiTrackInt) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueInt32,
		DataInt32:   ev.Data,
	})
}

func (p *ApiEventProcessor) ProcessTrackInt64(ev *event.ApiTrackInt64) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueInt64,
		DataInt64:   ev.Data,
	})
}

func (p *ApiEventProcessor) ProcessTrackUint(ev *event.ApiTrackUint) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueUint32,
		DataUint32:  ev.Data,
	})
}

func (p *ApiEventProcessor) ProcessTrackUint64(ev *event.ApiTrackUint64) {
	p.listener.OnApiTrackValue(ApiTrackValue{
		TimestampNS: ev.TimestampNS,
		ProcessID:   ev.ProcessID,
		ThreadID:    ev.ThreadID,
		Name:        ev.Name,
		Type:        TrackValueUint64,
		DataUint64:  ev.Data,
	})
}
