package protocol

// Edit types accepted by the world.
const (
	EditPlaceConnector  = "PLACE_CONNECTOR"
	EditPlaceDevice     = "PLACE_DEVICE"
	EditSetDeviceOutput = "SET_DEVICE_OUTPUT"
	EditPlaceBlock      = "PLACE_BLOCK"
	EditRemoveBlock     = "REMOVE_BLOCK"
	EditLink            = "LINK"
	EditUnlink          = "UNLINK"
	EditConfigureIO     = "CONFIGURE_IO"
	EditSetEmitter      = "SET_EMITTER"
	EditClearEmitter    = "CLEAR_EMITTER"
)

// EditReq is one world mutation. Which fields matter depends on Type:
// Pos is the target block; To is the far end of LINK/UNLINK; Facing is used by
// PLACE_CONNECTOR; Kind by PLACE_BLOCK; Side by SET_EMITTER; Signals by
// PLACE_DEVICE, SET_DEVICE_OUTPUT and SET_EMITTER.
type EditReq struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Pos     [3]int `json:"pos"`
	To      [3]int `json:"to,omitempty"`
	Facing  string `json:"facing,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Side    string `json:"side,omitempty"`
	Signals []int  `json:"signals,omitempty"`
}

// Client -> Server.
type EditMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Edits           []EditReq `json:"edits"`
}

// EditResult reports a rejected edit; accepted edits are not echoed.
type EditResult struct {
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server -> Client, answering an EditMsg once the edits have been queued.
type EditAckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Queued          int    `json:"queued"`
	Code            string `json:"code,omitempty"`
}
