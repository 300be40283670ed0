package board

// Event is a domain event emitted by the stores after a successful mutation.
// The broadcast layer registers a single sink at startup and decides the
// audience and throttling for each variant. Stores never perform socket I/O.
type Event interface {
	event()
}

// PinCreated is emitted for every new pin. The pin carries its image payload;
// this is the one broadcast where the image rides along. Removed names the
// pin evicted to make room when the board is at its capacity limit, or is
// empty when nothing was evicted.
type PinCreated struct {
	Pin     Pin
	Removed string
}

// PinChanged is emitted after an in-place pin mutation.
type PinChanged struct {
	Pin Pin
}

// PinsReordered is emitted after a batch z-order change, carrying the full
// list ordered by the new z-order.
type PinsReordered struct {
	Pins []Pin
}

// PinsReset is emitted when the board is cleared.
type PinsReset struct{}

// RosterChanged is emitted whenever the set of connected users changes.
type RosterChanged struct {
	Users []User
}

func (PinCreated) event()    {}
func (PinChanged) event()    {}
func (PinsReordered) event() {}
func (PinsReset) event()     {}
func (RosterChanged) event() {}
