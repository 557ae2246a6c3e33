// Package cards partitions a user's card list by card type and tracks which
// type is currently selected.
package cards

import "github.com/idcard/backend/internal/models"

// FallbackType is selected when the list has no cards at all.
const FallbackType = models.CardTypeMinimal

// Selector holds the distinct card types of a fetched list and one active
// selection. It never mutates the list it was built from.
type Selector struct {
	cards    []models.Card
	types    []models.CardType
	selected models.CardType
}

// NewSelector discovers the distinct card types of list in order of first
// appearance and selects the first one.
func NewSelector(list []models.Card) *Selector {
	seen := make(map[models.CardType]struct{}, len(models.CardTypes))
	types := make([]models.CardType, 0, len(models.CardTypes))
	for _, c := range list {
		if _, ok := seen[c.CardType]; ok {
			continue
		}
		seen[c.CardType] = struct{}{}
		types = append(types, c.CardType)
	}

	s := &Selector{cards: list, types: types, selected: FallbackType}
	if len(types) > 0 {
		s.selected = types[0]
	}
	return s
}

// Types returns a copy of the discovered types.
func (s *Selector) Types() []models.CardType {
	out := make([]models.CardType, len(s.types))
	copy(out, s.types)
	return out
}

func (s *Selector) Selected() models.CardType {
	return s.selected
}

// Has reports whether t was discovered in the list.
func (s *Selector) Has(t models.CardType) bool {
	for _, dt := range s.types {
		if dt == t {
			return true
		}
	}
	return false
}

// Select makes t the active selection if it was discovered and reports
// whether it did. Unknown types leave the selection unchanged.
func (s *Selector) Select(t models.CardType) bool {
	if !s.Has(t) {
		return false
	}
	s.selected = t
	return true
}

// Filtered returns the cards whose type equals the active selection, in
// list order.
func (s *Selector) Filtered() []models.Card {
	out := make([]models.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if c.CardType == s.selected {
			out = append(out, c)
		}
	}
	return out
}
