package protocol

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Networks asks for per-network channel tables in every TickMsg.
	Networks bool `json:"networks,omitempty"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Channels        int    `json:"channels"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`

	BlockUpdates []BlockUpdate  `json:"block_updates,omitempty"`
	Networks     []NetworkState `json:"networks,omitempty"`
	Rejected     []EditResult   `json:"rejected,omitempty"`
}

// BlockUpdate is the fire-and-forget "re-read this block" notice.
type BlockUpdate struct {
	Pos     [3]int `json:"pos"`
	Kind    string `json:"kind"`
	Signals []int  `json:"signals,omitempty"`
}

type NetworkState struct {
	ID     uint64  `json:"id"`
	Points int     `json:"points"`
	Values []int   `json:"values"`
	Inputs []Input `json:"inputs,omitempty"`
}

type Input struct {
	Pos    [3]int `json:"pos"`
	Index  int    `json:"index"`
	Values []int  `json:"values"`
}
