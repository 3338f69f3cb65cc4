package models

import "strconv"

// Wire event names exchanged over the socket.
const (
	EventJoin           = "join"
	EventChatSend       = "chat:send"
	EventChatReceive    = "chat:receive"
	EventChatTyping     = "chat:typing"
	EventChatStatus     = "chat:status"
	EventCheckStatus    = "chat:checkStatus"
	EventStatusResponse = "chat:statusResponse"
	EventDoctorOnline   = "doctor:online"
	EventPatientOnline  = "patient:online"
	EventUserOffline    = "user:offline"
)

// Envelope is the framing for every socket message, both directions.
type Envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// CoerceID normalizes an identifier pulled from a decoded JSON payload.
// Clients are not consistent about sending ids as strings; numeric ids and
// ObjectId-ish values must still route correctly.
func CoerceID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case nil:
		return ""
	default:
		return ""
	}
}
