package model

// AudioChunk represents a chunk of raw PCM audio (mono, 16-bit signed,
// little endian) at the sample rate agreed when the stream started.
type AudioChunk []byte

// DefaultSampleRate is used when the client does not announce one.
const DefaultSampleRate = 16000

// TranscriptEvent is one hypothesis emitted by a recognition stream.
// Partial events supersede each other; final events are authoritative.
type TranscriptEvent struct {
	Text      string
	IsPartial bool
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of the conversation history.
type ConversationTurn struct {
	Role Role
	Text string
}

// UserTurn builds a user turn.
func UserTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleUser, Text: text}
}

// AssistantTurn builds an assistant turn.
func AssistantTurn(text string) ConversationTurn {
	return ConversationTurn{Role: RoleAssistant, Text: text}
}

// ListenState is the recognition side of a session.
type ListenState int32

const (
	Listening ListenState = iota
	Stopped
)

func (s ListenState) String() string {
	if s == Listening {
		return "LISTENING"
	}
	return "STOPPED"
}

// PlaybackState is the client playback side of a session.
type PlaybackState int32

const (
	Idle PlaybackState = iota
	Playing
)

func (s PlaybackState) String() string {
	if s == Playing {
		return "PLAYING"
	}
	return "IDLE"
}
