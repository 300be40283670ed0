// Package protocol defines the JSON message catalog exchanged between the
// pinboard server and its clients over a persistent WebSocket connection.
// Every message is a single envelope with an "event" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pinboard-go/pinboard/pkg/board"
)

// Event names. Client-originated events drive store operations; the rest are
// emitted by the server to one session or broadcast to all.
const (
	// General
	EventError = "error"

	// Users
	EventUserConnect      = "userConnect"
	EventUserDisconnect   = "userDisconnect"
	EventUserPing         = "userPing"
	EventUserPingResponse = "userPingResponse"
	EventGetUsers         = "getUsers"
	EventUsersChanged     = "usersChanged"

	// Pins
	EventCreatePin     = "createPin"
	EventPinCreated    = "pinCreated"
	EventPinChanging   = "pinChanging"
	EventPinChanged    = "pinChanged"
	EventPinsReordered = "pinsReordered"
	EventPinsChanged   = "pinsChanged"
	EventPinsReset     = "pinsReset"
)

// clientEvents is the set of events a client may send.
var clientEvents = map[string]bool{
	EventUserConnect:      true,
	EventUserDisconnect:   true,
	EventUserPingResponse: true,
	EventGetUsers:         true,
	EventCreatePin:        true,
	EventPinChanging:      true,
	EventPinsReordered:    true,
	EventPinsReset:        true,
}

// Parse errors.
var (
	ErrMissingEvent = errors.New("protocol: missing event name")
	ErrUnknownEvent = errors.New("protocol: unknown event")
)

// Message is the wire envelope. All payload fields are optional; which ones
// are populated depends on the event.
type Message struct {
	Event string `json:"event"`

	// User payloads
	User   *board.User  `json:"user,omitempty"`
	UserID string       `json:"userId,omitempty"`
	Users  []board.User `json:"users,omitempty"`

	// Pin payloads
	Pin     *PinPayload    `json:"pin,omitempty"`
	Pins    []board.Pin    `json:"pins,omitempty"`
	Order   map[string]int `json:"order,omitempty"`
	Removed string         `json:"removed,omitempty"`

	// Error payload, delivered only to the originating session.
	Err *ErrorPayload `json:"err,omitempty"`
}

// PinPayload carries pin fields from a client. Pointer fields distinguish an
// absent value from an explicit zero so partial updates merge correctly.
type PinPayload struct {
	ID       string   `json:"id,omitempty"`
	PosX     *float64 `json:"posX,omitempty"`
	PosY     *float64 `json:"posY,omitempty"`
	Index    *int     `json:"index,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	OffsetX  *float64 `json:"offsetX,omitempty"`
	OffsetY  *float64 `json:"offsetY,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Stroke   *bool    `json:"stroke,omitempty"`
	Locked   *bool    `json:"locked,omitempty"`
	Image    string   `json:"image,omitempty"`

	// CreatedBy is set on outbound pins only; the server assigns the creator
	// from the requesting session and ignores inbound values.
	CreatedBy string `json:"createdBy,omitempty"`
}

// CreateRequest converts the payload into a store create request.
func (p *PinPayload) CreateRequest(createdBy string) *board.CreateRequest {
	if p == nil {
		return nil
	}
	req := &board.CreateRequest{
		PosX:      p.PosX,
		PosY:      p.PosY,
		Width:     p.Width,
		Height:    p.Height,
		Rotation:  0,
		CreatedBy: createdBy,
		Image:     p.Image,
	}
	if p.OffsetX != nil {
		req.OffsetX = *p.OffsetX
	}
	if p.OffsetY != nil {
		req.OffsetY = *p.OffsetY
	}
	if p.Rotation != nil {
		req.Rotation = *p.Rotation
	}
	if p.Stroke != nil {
		req.Stroke = *p.Stroke
	}
	if p.Locked != nil {
		req.Locked = *p.Locked
	}
	return req
}

// Update converts the payload into a store partial update.
func (p *PinPayload) Update() *board.Update {
	if p == nil {
		return nil
	}
	return &board.Update{
		PosX:     p.PosX,
		PosY:     p.PosY,
		Index:    p.Index,
		OffsetX:  p.OffsetX,
		OffsetY:  p.OffsetY,
		Rotation: p.Rotation,
		Stroke:   p.Stroke,
		Locked:   p.Locked,
	}
}

// FromPin builds the wire representation of a pin for outbound messages.
func FromPin(p board.Pin) *PinPayload {
	return &PinPayload{
		ID:        p.ID,
		PosX:      ptr(p.PosX),
		PosY:      ptr(p.PosY),
		Index:     ptr(p.Index),
		Width:     ptr(p.Width),
		Height:    ptr(p.Height),
		OffsetX:   ptr(p.OffsetX),
		OffsetY:   ptr(p.OffsetY),
		Rotation:  ptr(p.Rotation),
		Stroke:    ptr(p.Stroke),
		Locked:    ptr(p.Locked),
		Image:     p.Image,
		CreatedBy: p.CreatedBy,
	}
}

func ptr[T any](v T) *T { return &v }

// ErrorPayload carries an error code and message back to the sender.
type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// ParseClient decodes and validates a client-originated message.
func ParseClient(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}
	if msg.Event == "" {
		return nil, ErrMissingEvent
	}
	if !clientEvents[msg.Event] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
	return &msg, nil
}

// Marshal encodes the message for the wire.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// NewError builds an error message for the originating session.
func NewError(code int, msg string) *Message {
	return &Message{Event: EventError, Err: &ErrorPayload{Code: code, Msg: msg}}
}
