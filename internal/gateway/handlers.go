package gateway

import "encoding/json"

// Handlers is the closed set of capability hooks a connection owner provides.
// Nil hooks are skipped. OnConnect fires once per established connection and
// OnDisconnect exactly once per loss, in that order.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	OnMessage    func(payload []byte)
	OnOtherEvent func(name string, payload []byte)
}

// EventMessage routes gateway "message" frames to OnMessage.
const EventMessage = "message"

// RawEvent names frames that do not carry the event envelope.
const RawEvent = "raw"

type eventFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// decodeFrame extracts the event name and payload from an inbound frame.
// Frames without a parseable envelope are surfaced as RawEvent so nothing
// the gateway sends is silently dropped.
func decodeFrame(data []byte) (string, []byte) {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		return RawEvent, data
	}
	return frame.Event, []byte(frame.Data)
}

func (handlers Handlers) dispatch(name string, payload []byte) {
	if name == EventMessage {
		if handlers.OnMessage != nil {
			handlers.OnMessage(payload)
		}
		return
	}
	if handlers.OnOtherEvent != nil {
		handlers.OnOtherEvent(name, payload)
	}
}
