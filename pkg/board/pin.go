package board

import "math"

// Pin represents one placed image on the board.
//
// The id is unique and immutable after creation. Index is the z-order: higher
// paints later, on top. Image is an opaque payload (typically a data URL) that
// is immutable once set and stripped from steady-state broadcasts.
type Pin struct {
	ID        string  `json:"id"`
	PosX      float64 `json:"posX"`
	PosY      float64 `json:"posY"`
	Index     int     `json:"index"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	OffsetX   float64 `json:"offsetX"`
	OffsetY   float64 `json:"offsetY"`
	Rotation  float64 `json:"rotation"`
	CreatedBy string  `json:"createdBy"`
	Image     string  `json:"image,omitempty"`
	Stroke    bool    `json:"stroke"`
	Locked    bool    `json:"locked"`

	// Creation sequence, used for oldest-first eviction at the board cap.
	seq uint64
}

// Public returns a copy of the pin with the image payload stripped.
// Every broadcast after the pin's initial creation uses this projection to
// keep steady-state drag traffic small.
func (p Pin) Public() Pin {
	p.Image = ""
	return p
}

// CreateRequest carries the fields for a new pin. The required numeric fields
// are pointers so a missing field can be told apart from an explicit zero.
type CreateRequest struct {
	PosX      *float64
	PosY      *float64
	Width     *float64
	Height    *float64
	OffsetX   float64
	OffsetY   float64
	Rotation  float64
	Stroke    bool
	Locked    bool
	CreatedBy string
	Image     string
}

// Validate checks that all required numeric fields are present and finite.
func (r *CreateRequest) Validate() error {
	required := []struct {
		name  string
		value *float64
	}{
		{"posX", r.PosX},
		{"posY", r.PosY},
		{"width", r.Width},
		{"height", r.Height},
	}
	for _, f := range required {
		if f.value == nil {
			return &ValidationError{Field: f.name, Reason: "missing"}
		}
		if math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return &ValidationError{Field: f.name, Reason: "not a finite number"}
		}
	}
	return nil
}

// Update carries a partial pin mutation. Nil fields are left untouched by the
// merge. The image payload is immutable after creation and cannot appear here.
type Update struct {
	PosX     *float64
	PosY     *float64
	Index    *int
	OffsetX  *float64
	OffsetY  *float64
	Rotation *float64
	Stroke   *bool
	Locked   *bool
}
