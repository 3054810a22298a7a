package ws

import "strings"

const (
	tenantPrefix = "tenant:"
	streamPrefix = "stream:"
)

// RoomKey names a subscription topic. Two forms exist: tenant rooms
// ("tenant:<id>"), joined automatically at registration and never leavable,
// and stream rooms ("stream:<id>"), joined and left by client request.
type RoomKey string

func TenantRoom(tenantID string) RoomKey {
	return RoomKey(tenantPrefix + tenantID)
}

func StreamRoom(streamID string) RoomKey {
	return RoomKey(streamPrefix + streamID)
}

func (k RoomKey) IsTenant() bool {
	return strings.HasPrefix(string(k), tenantPrefix)
}

// StreamID returns the stream identifier for a stream room key.
func (k RoomKey) StreamID() (string, bool) {
	if !strings.HasPrefix(string(k), streamPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(k), streamPrefix), true
}
