package bridge

import "encoding/json"

// CallEnvelope is the wire request sent to the editor peer.
type CallEnvelope struct {
	ID     string                 `json:"id"`
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// PeerErrorInfo carries the peer's own error code and message.
type PeerErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResultEnvelope is the wire response correlated to a CallEnvelope by id.
// Result is opaque to the bridge: it is passed through without inspection.
type ResultEnvelope struct {
	ID      string         `json:"id"`
	Success bool           `json:"success"`
	Result  interface{}    `json:"result,omitempty"`
	Error   *PeerErrorInfo `json:"error,omitempty"`
}

// EventEnvelope is an unsolicited notification from the peer. It carries no
// id and is never correlated to a pending call.
type EventEnvelope struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// frame is the union shape used to dispatch incoming messages: presence of
// an id routes to the pending table, presence of an event field broadcasts.
type frame struct {
	ID      string                 `json:"id,omitempty"`
	Success bool                   `json:"success,omitempty"`
	Result  interface{}            `json:"result,omitempty"`
	Error   *PeerErrorInfo         `json:"error,omitempty"`
	Event   string                 `json:"event,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func decodeFrame(data []byte) (*frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
