package availability

import (
	"strings"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
)

// MatchRoom finds the catalog entry a free-form room label refers to.
// Exact name wins over exact category, which wins over substring containment in
// either direction, tried on names before categories. Comparison ignores case and surrounding whitespace; nil means no match.
func MatchRoom(rooms []domain.Room, label string) *domain.Room {
	q := fold(label)
	if q == "" {
		return nil
	}
	for i := range rooms {
		if fold(rooms[i].Name) == q {
			return &rooms[i]
		}
	}
	for i := range rooms {
		if fold(rooms[i].Category) == q {
			return &rooms[i]
		}
	}
	for i := range rooms {
		if ContainsEither(rooms[i].Name, label) {
			return &rooms[i]
		}
	}
	for i := range rooms {
		if ContainsEither(rooms[i].Category, label) {
			return &rooms[i]
		}
	}
	return nil
}

// ContainsEither reports whether a contains b or b contains a, ignoring case.
func ContainsEither(a, b string) bool {
	fa, fb := fold(a), fold(b)
	if fa == "" || fb == "" {
		return false
	}
	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
