package board

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// PinStore is the authoritative mapping of pin identity to pin state.
// All operations are atomic; events are delivered to the notify sink after
// the store lock is released so fan-out never extends the critical section.
type PinStore struct {
	mu   sync.RWMutex
	pins map[string]*Pin
	seq  uint64

	// maxPins caps the board size; 0 means unlimited. At the cap, the oldest
	// pin is evicted to make room for a new one.
	maxPins int

	notify func(Event)
	logger *slog.Logger
}

// NewPinStore creates an empty pin store.
func NewPinStore(maxPins int, logger *slog.Logger) *PinStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PinStore{
		pins:    make(map[string]*Pin),
		maxPins: maxPins,
		logger:  logger.With("component", "pins"),
	}
}

// SetNotify registers the event sink. Register once at startup, before the
// store is shared with any session.
func (s *PinStore) SetNotify(fn func(Event)) {
	s.notify = fn
}

func (s *PinStore) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// Create validates the request, allocates an id and the next z-order index,
// and stores the full record including the image payload. A malformed request
// is rejected with a ValidationError and performs no mutation.
func (s *PinStore) Create(req *CreateRequest) (Pin, error) {
	if req == nil {
		return Pin{}, &ValidationError{Field: "pin", Reason: "missing"}
	}
	if err := req.Validate(); err != nil {
		return Pin{}, err
	}

	s.mu.Lock()

	removed := ""
	if s.maxPins > 0 && len(s.pins) >= s.maxPins {
		removed = s.evictOldestLocked()
	}

	index := 0
	for _, p := range s.pins {
		if p.Index >= index {
			index = p.Index + 1
		}
	}

	s.seq++
	pin := &Pin{
		ID:        uuid.NewString(),
		PosX:      *req.PosX,
		PosY:      *req.PosY,
		Index:     index,
		Width:     *req.Width,
		Height:    *req.Height,
		OffsetX:   req.OffsetX,
		OffsetY:   req.OffsetY,
		Rotation:  req.Rotation,
		CreatedBy: req.CreatedBy,
		Image:     req.Image,
		Stroke:    req.Stroke,
		Locked:    req.Locked,
		seq:       s.seq,
	}
	s.pins[pin.ID] = pin

	created := *pin
	count := len(s.pins)
	s.mu.Unlock()

	s.logger.Debug("pin created", "pin_id", created.ID, "index", created.Index, "pins", count)
	s.emit(PinCreated{Pin: created, Removed: removed})
	return created, nil
}

// evictOldestLocked removes the pin with the smallest creation sequence.
// Caller must hold the write lock.
func (s *PinStore) evictOldestLocked() string {
	var oldest *Pin
	for _, p := range s.pins {
		if oldest == nil || p.seq < oldest.seq {
			oldest = p
		}
	}
	if oldest == nil {
		return ""
	}
	delete(s.pins, oldest.ID)
	return oldest.ID
}

// Update merges the provided fields into the existing record, leaving
// unspecified fields untouched. An absent id is reported with a NotFoundError
// and mutates nothing. A locked pin ignores movement fields unless the same
// update also unlocks it.
func (s *PinStore) Update(id string, upd *Update) (Pin, error) {
	if upd == nil {
		return Pin{}, &ValidationError{Field: "pin", Reason: "missing"}
	}

	s.mu.Lock()
	pin, ok := s.pins[id]
	if !ok {
		s.mu.Unlock()
		return Pin{}, &NotFoundError{Kind: "pin", ID: id}
	}

	movable := !pin.Locked || (upd.Locked != nil && !*upd.Locked)
	if movable {
		if upd.PosX != nil {
			pin.PosX = *upd.PosX
		}
		if upd.PosY != nil {
			pin.PosY = *upd.PosY
		}
		if upd.Index != nil {
			pin.Index = *upd.Index
		}
		if upd.OffsetX != nil {
			pin.OffsetX = *upd.OffsetX
		}
		if upd.OffsetY != nil {
			pin.OffsetY = *upd.OffsetY
		}
		if upd.Rotation != nil {
			pin.Rotation = *upd.Rotation
		}
	}
	if upd.Stroke != nil {
		pin.Stroke = *upd.Stroke
	}
	if upd.Locked != nil {
		pin.Locked = *upd.Locked
	}
	// Most recent update wins z-order ties.
	s.seq++
	pin.seq = s.seq

	updated := *pin
	s.mu.Unlock()

	s.emit(PinChanged{Pin: updated})
	return updated, nil
}

// Reorder applies all z-index changes atomically as a batch and renumbers the
// board contiguously. Two pins mapped to the same incoming index are resolved
// by mutation sequence, most recently updated last. Ids not present in the
// store are ignored. The returned slice is ordered ascending by the new
// z-index.
func (s *PinStore) Reorder(indexByID map[string]int) []Pin {
	s.mu.Lock()

	for id, index := range indexByID {
		if pin, ok := s.pins[id]; ok {
			pin.Index = index
		}
	}

	ordered := make([]*Pin, 0, len(s.pins))
	for _, p := range s.pins {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Index != ordered[j].Index {
			return ordered[i].Index < ordered[j].Index
		}
		return ordered[i].seq < ordered[j].seq
	})
	out := make([]Pin, len(ordered))
	for i, p := range ordered {
		p.Index = i
		out[i] = *p
	}
	s.mu.Unlock()

	s.emit(PinsReordered{Pins: out})
	return out
}

// Reset clears every pin. Used for board-clear.
func (s *PinStore) Reset() {
	s.mu.Lock()
	cleared := len(s.pins)
	s.pins = make(map[string]*Pin)
	s.mu.Unlock()

	s.logger.Debug("board reset", "cleared", cleared)
	s.emit(PinsReset{})
}

// Snapshot returns a read-only copy of all pins ordered by z-index. Equal
// indexes are ordered by mutation sequence, so the most recently updated pin
// sorts last and paints on top. Used to seed newly connected clients.
func (s *PinStore) Snapshot() []Pin {
	s.mu.RLock()
	out := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Count returns the number of pins on the board.
func (s *PinStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pins)
}
