package feed

import "encoding/json"

// Frame types exchanged on the live feed.
const (
	frameMessages      = "messages"
	framePing          = "ping"
	framePong          = "pong"
	frameError         = "error"
	frameSetAfterRowID = "set_after_rowid"
)

// inbound is any server frame. Fields not used by a frame type stay zero.
type inbound struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	LastRowID int64           `json:"last_rowid"`
	Message   string          `json:"message"`
}

type resumeFrame struct {
	Type  string `json:"type"`
	RowID int64  `json:"rowid"`
}

type pingFrame struct {
	Type string `json:"type"`
}
