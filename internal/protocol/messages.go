package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ActorID         string `json:"actor_id"`
	Name            string `json:"name,omitempty"`
	World           string `json:"world,omitempty"`
	Pos             [3]int `json:"pos,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ActorID         string   `json:"actor_id"`
	World           string   `json:"world"`
	Pos             [3]int   `json:"pos"`
	Tick            uint64   `json:"tick"`
	TickRateHz      int      `json:"tick_rate_hz"`
	Worlds          []string `json:"worlds"`
	MaxClaims       int      `json:"max_claims"`
	Claims          []string `json:"claims"`
}

type ToolRef struct {
	Type      string `json:"type"`
	Fortune   int    `json:"fortune,omitempty"`
	SilkTouch bool   `json:"silk_touch,omitempty"`
}

// BREAK (client -> server): a single-cell break attempt.
type BreakMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Pos             [3]int  `json:"pos"`
	Tool            ToolRef `json:"tool"`
}

// SNEAK (client -> server). Tool is the item in hand at the time.
type SneakMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Sneaking        bool     `json:"sneaking"`
	Tool            *ToolRef `json:"tool,omitempty"`
}

type MoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Pos             [3]int `json:"pos"`
}

// CHUNK (client -> server): claim, unclaim, list or info on the chunk the
// actor stands in.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Op              string `json:"op"`
}

// NOTIFY (server -> client)
type NotifyMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"tick"`
	Key             string            `json:"key"`
	Args            map[string]string `json:"args,omitempty"`
	Text            string            `json:"text"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
