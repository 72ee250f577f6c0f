package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is a message sent by the editor surface. It is one of
// ValueChanged or Ready.
type Message interface {
	isMessage()
}

// ValueChanged reports that the user moved the control named Key. Value is
// the textual form of the new setting as the surface produced it.
type ValueChanged struct {
	Key   string
	Value string
}

// Ready asks for the current controls, e.g. after the surface reconnected.
type Ready struct{}

func (ValueChanged) isMessage() {}
func (Ready) isMessage()        {}

// wireMessage is the JSON shape of surface messages.
type wireMessage struct {
	Command string          `json:"command"`
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value"`
}

// DecodeMessage parses one surface message. An unknown command is a
// bad-request error.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, ErrBadRequest("invalid message: " + err.Error())
	}
	switch w.Command {
	case "valueChanged":
		if w.Key == "" {
			return nil, &AppError{Code: "BAD_REQUEST", Message: "valueChanged: key is required", Field: "key", Status: 400}
		}
		return ValueChanged{Key: w.Key, Value: rawText(w.Value)}, nil
	case "ready":
		return Ready{}, nil
	}
	return nil, ErrBadRequest(fmt.Sprintf("unknown command %q", w.Command))
}

// rawText returns a JSON string's contents, or the literal text of any other
// JSON value. Sliders post strings but scripted clients often post numbers.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Outbound is a message sent to the editor surface.
type Outbound struct {
	Command  string    `json:"command"`
	Controls []Control `json:"controls,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}
