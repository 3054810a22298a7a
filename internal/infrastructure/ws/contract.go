package ws

import "time"

// Envelope is the fixed wire structure wrapping every server→client event.
type Envelope struct {
	Event     EventKind `json:"event"`
	Room      RoomKey   `json:"room,omitempty"`
	Data      any       `json:"data,omitempty"`
	EmittedAt time.Time `json:"emittedAt"`
}

func NewEnvelope(event EventKind, room RoomKey, data any) *Envelope {
	return &Envelope{
		Event:     event,
		Room:      room,
		Data:      data,
		EmittedAt: time.Now().UTC(),
	}
}

// ControlFrame is a client→server request: subscribe, unsubscribe or ping.
type ControlFrame struct {
	Action   string `json:"action"`
	StreamID string `json:"streamId,omitempty"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Subscription states carried in subscription.ack envelopes.
const (
	StateSubscribed   = "subscribed"
	StateUnsubscribed = "unsubscribed"
)

type ConnectionAcceptedPayload struct {
	ConnectionID string  `json:"connectionId"`
	TenantRoom   RoomKey `json:"tenantRoom"`
}

type SubscriptionAckPayload struct {
	StreamID string `json:"streamId"`
	State    string `json:"state"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ShutdownPayload struct {
	Reason string `json:"reason"`
}

func NewConnectionAccepted(connectionID string, tenantRoom RoomKey) *Envelope {
	return NewEnvelope(EventConnectionAccepted, tenantRoom, ConnectionAcceptedPayload{
		ConnectionID: connectionID,
		TenantRoom:   tenantRoom,
	})
}

func NewSubscriptionAck(streamID, state string) *Envelope {
	return NewEnvelope(EventSubscriptionAck, StreamRoom(streamID), SubscriptionAckPayload{
		StreamID: streamID,
		State:    state,
	})
}

func NewPong() *Envelope {
	return NewEnvelope(EventPong, "", nil)
}

func NewSubscriptionDenied(streamID string) *Envelope {
	return NewEnvelope(EventSubscriptionDenied, StreamRoom(streamID), ErrorPayload{
		Code:    "SubscriptionDenied",
		Message: "tenant is not entitled to this stream",
	})
}

func NewMalformedError(message string) *Envelope {
	return NewEnvelope(EventMalformed, "", ErrorPayload{
		Code:    "MalformedRequest",
		Message: message,
	})
}

func NewShutdownNotice(reason string) *Envelope {
	return NewEnvelope(EventServerShutdown, "", ShutdownPayload{
		Reason: reason,
	})
}
