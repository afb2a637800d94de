package api

import (
	"errors"
	"fmt"
)

// OperationType identifies an edit operation against a room's element collection
type OperationType string

const (
	// OperationUpsert creates the element if its id is unknown, otherwise
	// merges the payload into the existing element
	OperationUpsert OperationType = "upsert"
	// OperationDelete removes the element with the payload's id
	OperationDelete OperationType = "delete"
	// OperationClear empties the whole collection
	OperationClear OperationType = "clear"
)

// BoardOperation is the payload of one edit operation
type BoardOperation struct {
	Type    OperationType `json:"type"`
	Element *Element      `json:"element,omitempty"`
}

// MergeOutcome describes the effect an operation had on canonical state
type MergeOutcome string

const (
	OutcomeCreated  MergeOutcome = "created"
	OutcomeUpdated  MergeOutcome = "updated"
	OutcomeAppended MergeOutcome = "appended"
	OutcomeDeleted  MergeOutcome = "deleted"
	OutcomeCleared  MergeOutcome = "cleared"
	OutcomeNoop     MergeOutcome = "noop"
)

var (
	// ErrUnknownOperation marks an operation type outside the closed set;
	// callers log and drop, nothing is relayed
	ErrUnknownOperation = errors.New("unknown operation type")
	// ErrInvalidKind marks a create whose payload lacks a valid element kind
	ErrInvalidKind = errors.New("create requires a valid element kind")
)

// ApplyOperation merges one edit operation into an element collection and
// returns the resulting collection. Receivers of the relayed operation run
// the identical function against their own mirrored state, so it must stay
// deterministic: same input collection + operation, same output.
//
// Precedence: clear, then delete (explicit or via the remove flag), then
// point append for freedraw elements, then field-wise last-write-wins merge,
// then implicit creation.
func ApplyOperation(elements []*Element, op *BoardOperation) ([]*Element, MergeOutcome, error) {
	switch op.Type {
	case OperationClear:
		return []*Element{}, OutcomeCleared, nil

	case OperationDelete:
		if op.Element == nil || op.Element.ID == "" {
			return elements, OutcomeNoop, fmt.Errorf("delete without element id")
		}
		return deleteElement(elements, op.Element.ID)

	case OperationUpsert:
		if op.Element == nil || op.Element.ID == "" {
			return elements, OutcomeNoop, fmt.Errorf("upsert without element id")
		}
		if op.Element.Remove {
			return deleteElement(elements, op.Element.ID)
		}
		return upsertElement(elements, op.Element)

	default:
		return elements, OutcomeNoop, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}
}

// deleteElement removes the element with the given id. Deleting an unknown
// id is a no-op: there is no payload to build an implicit creation from.
func deleteElement(elements []*Element, id string) ([]*Element, MergeOutcome, error) {
	for i, e := range elements {
		if e.ID == id {
			return append(elements[:i], elements[i+1:]...), OutcomeDeleted, nil
		}
	}
	return elements, OutcomeNoop, nil
}

func upsertElement(elements []*Element, payload *Element) ([]*Element, MergeOutcome, error) {
	for _, existing := range elements {
		if existing.ID != payload.ID {
			continue
		}

		// Kind is immutable once created; the exhaustive switch over the
		// closed set decides the merge semantics.
		switch existing.Kind {
		case ElementKindFreedraw:
			if len(payload.Points) > 0 {
				// Points on an in-progress stroke are append-only:
				// concatenated in order, never deduplicated, never replaced.
				existing.Points = append(existing.Points, payload.Points...)
				mergeFields(existing, payload, false)
				return elements, OutcomeAppended, nil
			}
			if !mergeFields(existing, payload, false) {
				return elements, OutcomeNoop, nil
			}
			return elements, OutcomeUpdated, nil

		case ElementKindRectangle, ElementKindCircle, ElementKindArrow, ElementKindText:
			// A payload carrying no fields changes nothing; reporting it as
			// a noop keeps it out of the undo history
			if !mergeFields(existing, payload, true) {
				return elements, OutcomeNoop, nil
			}
			return elements, OutcomeUpdated, nil

		default:
			// Canonical state only ever holds valid kinds
			return elements, OutcomeNoop, fmt.Errorf("%w: canonical element %s has kind %q",
				ErrInvalidKind, existing.ID, existing.Kind)
		}
	}

	// Implicit creation: an upsert for an unknown id inserts a new element
	// at the end of the collection. The kind must be declared.
	if !payload.Kind.Valid() {
		return elements, OutcomeNoop, fmt.Errorf("%w: got %q for new element %s",
			ErrInvalidKind, payload.Kind, payload.ID)
	}
	return append(elements, payload.Clone()), OutcomeCreated, nil
}

// mergeFields copies every field present on src into dst, field-wise
// last-write-wins, and reports whether any field was copied. Absent (nil)
// fields leave dst untouched. Kind is never copied: an existing element
// keeps its kind for life.
func mergeFields(dst, src *Element, includePoints bool) bool {
	changed := false
	if src.Color != nil {
		dst.Color = clonePtr(src.Color)
		changed = true
	}
	if src.X != nil {
		dst.X = clonePtr(src.X)
		changed = true
	}
	if src.Y != nil {
		dst.Y = clonePtr(src.Y)
		changed = true
	}
	if src.Rotation != nil {
		dst.Rotation = clonePtr(src.Rotation)
		changed = true
	}
	if src.ScaleX != nil {
		dst.ScaleX = clonePtr(src.ScaleX)
		changed = true
	}
	if src.ScaleY != nil {
		dst.ScaleY = clonePtr(src.ScaleY)
		changed = true
	}
	if src.Width != nil {
		dst.Width = clonePtr(src.Width)
		changed = true
	}
	if src.Height != nil {
		dst.Height = clonePtr(src.Height)
		changed = true
	}
	if src.Radius != nil {
		dst.Radius = clonePtr(src.Radius)
		changed = true
	}
	if src.Text != nil {
		dst.Text = clonePtr(src.Text)
		changed = true
	}
	if src.FontSize != nil {
		dst.FontSize = clonePtr(src.FontSize)
		changed = true
	}
	if includePoints && len(src.Points) > 0 {
		dst.Points = make([]float64, len(src.Points))
		copy(dst.Points, src.Points)
		changed = true
	}
	return changed
}
