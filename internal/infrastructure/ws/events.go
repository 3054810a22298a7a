package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind names a server→client event. The set is closed: the ingest
// surface and the emitter only accept the kinds defined here.
type EventKind string

const (
	// Lifecycle events, produced by the relay itself.
	EventConnectionAccepted EventKind = "connection.accepted"
	EventSubscriptionAck    EventKind = "subscription.ack"
	EventPong               EventKind = "pong"
	EventSubscriptionDenied EventKind = "error.subscription_denied"
	EventMalformed          EventKind = "error.malformed"
	EventServerShutdown     EventKind = "server.shutdown"

	// Upstream events, forwarded from external collaborators.
	EventDetectionUpdate EventKind = "detection.update"
	EventChunkProcessed  EventKind = "chunk.processed"
	EventStreamStatus    EventKind = "stream.status"
	EventTenantMetrics   EventKind = "tenant.metrics"
	EventScanStarted     EventKind = "scan.started"
	EventScanPosition    EventKind = "scan.position"
	EventScanDetection   EventKind = "scan.detection"
	EventScanPhase       EventKind = "scan.phase"
	EventScanRecording   EventKind = "scan.recording"
	EventScanComplete    EventKind = "scan.complete"
	EventScanStopped     EventKind = "scan.stopped"
	EventScanError       EventKind = "scan.error"
)

var ErrUnknownEvent = errors.New("unknown event kind")

// Detection is one detected object within a video frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

type DetectionUpdatePayload struct {
	StreamID   string      `json:"streamId"`
	FrameTime  time.Time   `json:"frameTime"`
	Detections []Detection `json:"detections"`
}

type ChunkProcessedPayload struct {
	StreamID string  `json:"streamId"`
	ChunkID  string  `json:"chunkId"`
	Index    int     `json:"index"`
	Duration float64 `json:"duration"`
}

type StreamStatusPayload struct {
	StreamID string `json:"streamId"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

type TenantMetricsPayload struct {
	ActiveStreams   int       `json:"activeStreams"`
	DetectionsToday int       `json:"detectionsToday"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ScanStartedPayload struct {
	ScanID   string   `json:"scanId"`
	StreamID string   `json:"streamId"`
	Phases   []string `json:"phases,omitempty"`
}

type ScanPositionPayload struct {
	ScanID     string `json:"scanId"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"totalSteps"`
}

type ScanDetectionPayload struct {
	ScanID    string    `json:"scanId"`
	Detection Detection `json:"detection"`
}

type ScanPhasePayload struct {
	ScanID string `json:"scanId"`
	Phase  string `json:"phase"`
}

type ScanRecordingPayload struct {
	ScanID    string `json:"scanId"`
	ClipID    string `json:"clipId"`
	Recording bool   `json:"recording"`
}

type ScanCompletePayload struct {
	ScanID     string `json:"scanId"`
	Detections int    `json:"detections"`
}

type ScanStoppedPayload struct {
	ScanID string `json:"scanId"`
	Reason string `json:"reason,omitempty"`
}

type ScanErrorPayload struct {
	ScanID  string `json:"scanId"`
	Message string `json:"message"`
}

// DecodePayload parses raw JSON into the closed payload struct for the given
// upstream event kind. Lifecycle kinds and unknown names fail with
// ErrUnknownEvent; they cannot be injected from outside.
func DecodePayload(kind EventKind, raw []byte) (any, error) {
	var dst any

	switch kind {
	case EventDetectionUpdate:
		dst = &DetectionUpdatePayload{}
	case EventChunkProcessed:
		dst = &ChunkProcessedPayload{}
	case EventStreamStatus:
		dst = &StreamStatusPayload{}
	case EventTenantMetrics:
		dst = &TenantMetricsPayload{}
	case EventScanStarted:
		dst = &ScanStartedPayload{}
	case EventScanPosition:
		dst = &ScanPositionPayload{}
	case EventScanDetection:
		dst = &ScanDetectionPayload{}
	case EventScanPhase:
		dst = &ScanPhasePayload{}
	case EventScanRecording:
		dst = &ScanRecordingPayload{}
	case EventScanComplete:
		dst = &ScanCompletePayload{}
	case EventScanStopped:
		dst = &ScanStoppedPayload{}
	case EventScanError:
		dst = &ScanErrorPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}

	return dst, nil
}
