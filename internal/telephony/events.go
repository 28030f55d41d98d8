package telephony

// Media stream wire events. The telephony provider frames everything as JSON
// text messages with an "event" discriminator.

// EventType discriminates media stream messages.
type EventType string

const (
	// EventStart opens a media stream and names the call.
	EventStart EventType = "start"
	// EventMedia carries one base64 audio payload in either direction.
	EventMedia EventType = "media"
	// EventMark names a playback position; inbound marks confirm playback,
	// outbound marks delimit a response.
	EventMark EventType = "mark"
	// EventStop ends the media stream.
	EventStop EventType = "stop"
)

// Event is one media stream message. Exactly one payload field matching the
// event type is set.
type Event struct {
	Event     EventType     `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Mark      *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload identifies the call behind a new media stream.
type StartPayload struct {
	CallSID   string `json:"callSid"`
	StreamSID string `json:"streamSid"`
}

// MediaPayload carries base64-encoded mu-law audio. Track is set on outbound
// payloads; inbound payloads leave it empty or set it to "inbound".
type MediaPayload struct {
	Track   string `json:"track,omitempty"`
	Payload string `json:"payload"`
}

// MarkPayload names a playback marker.
type MarkPayload struct {
	Name string `json:"name"`
}

// outboundTrack is the track identifier for audio sent to the caller.
const outboundTrack = "outbound"
