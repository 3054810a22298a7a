package ws

import (
	"go.uber.org/zap"
)

// Emitter is the emission API handed to external collaborators. It resolves
// room membership at call time and fans the envelope out to every member.
// Payloads are trusted: the caller validated them against the event schema
// before emitting.
type Emitter struct {
	core    *Core
	metrics *Metrics
	logger  *zap.SugaredLogger
}

func NewEmitter(core *Core, metrics *Metrics, logger *zap.SugaredLogger) *Emitter {
	return &Emitter{
		core:    core,
		metrics: metrics,
		logger:  logger,
	}
}

func (e *Emitter) EmitToStream(streamID string, event EventKind, payload any) {
	e.Broadcast(StreamRoom(streamID), event, payload)
}

func (e *Emitter) EmitToTenant(tenantID string, event EventKind, payload any) {
	e.Broadcast(TenantRoom(tenantID), event, payload)
}

// Broadcast delivers one envelope to every current member of the room.
// A room with no members is a normal, silent outcome. A member whose buffer
// is full is disconnected rather than allowed to stall the fan-out.
func (e *Emitter) Broadcast(room RoomKey, event EventKind, payload any) {
	members := e.core.registry.Members(room)
	if len(members) == 0 {
		return
	}

	env := NewEnvelope(event, room, payload)
	for _, cl := range members {
		if cl.trySend(env) {
			e.metrics.EventsDelivered.Inc()
			continue
		}

		e.metrics.EventsDropped.Inc()
		e.logger.Warnw("subscriber cannot keep up, disconnecting",
			"connection", cl.ID,
			"room", room,
			"event", event,
		)
		e.core.disconnect(cl)
	}
}
