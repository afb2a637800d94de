package api

// ElementKind identifies one of the closed set of drawable element types.
// The wire names match the drawing surface's shape tags.
type ElementKind string

const (
	ElementKindFreedraw  ElementKind = "freedraw"
	ElementKindRectangle ElementKind = "rectangle"
	ElementKindCircle    ElementKind = "circle"
	ElementKindArrow     ElementKind = "arrow"
	ElementKindText      ElementKind = "text"
)

// Valid reports whether k is a member of the closed kind set
func (k ElementKind) Valid() bool {
	switch k {
	case ElementKindFreedraw, ElementKindRectangle, ElementKindCircle,
		ElementKindArrow, ElementKindText:
		return true
	default:
		return false
	}
}

// Element is a single drawable unit on the shared surface. The encoding is
// flat: kind-specific fields are optional and only the ones relevant to the
// element's kind are populated. Optional fields are pointers so an absent
// field never participates in a last-write-wins merge. Points is a flat list
// of x,y pairs.
type Element struct {
	ID       string      `json:"id"`
	Kind     ElementKind `json:"type,omitempty"`
	Color    *string     `json:"color,omitempty"`
	X        *float64    `json:"x,omitempty"`
	Y        *float64    `json:"y,omitempty"`
	Rotation *float64    `json:"rotation,omitempty"`
	ScaleX   *float64    `json:"scaleX,omitempty"`
	ScaleY   *float64    `json:"scaleY,omitempty"`
	Points   []float64   `json:"points,omitempty"`
	Width    *float64    `json:"width,omitempty"`
	Height   *float64    `json:"height,omitempty"`
	Radius   *float64    `json:"radius,omitempty"`
	Text     *string     `json:"text,omitempty"`
	FontSize *float64    `json:"fontSize,omitempty"`
	// Remove marks an upsert as a deletion, matching the drawing surface's
	// legacy delete encoding
	Remove bool `json:"remove,omitempty"`
}

// Clone returns a deep copy of the element
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := *e
	out.Color = clonePtr(e.Color)
	out.X = clonePtr(e.X)
	out.Y = clonePtr(e.Y)
	out.Rotation = clonePtr(e.Rotation)
	out.ScaleX = clonePtr(e.ScaleX)
	out.ScaleY = clonePtr(e.ScaleY)
	out.Width = clonePtr(e.Width)
	out.Height = clonePtr(e.Height)
	out.Radius = clonePtr(e.Radius)
	out.Text = clonePtr(e.Text)
	out.FontSize = clonePtr(e.FontSize)
	if e.Points != nil {
		out.Points = make([]float64, len(e.Points))
		copy(out.Points, e.Points)
	}
	return &out
}

// CloneElements deep-copies an element collection
func CloneElements(elements []*Element) []*Element {
	if elements == nil {
		return nil
	}
	out := make([]*Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
