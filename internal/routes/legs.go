package routes

import (
	"strings"

	"airline_ops/internal/models"
)

type Leg struct {
	Origin string
	Dest   string
}

// Legs lists the flying order of a route: out and back for a direct
// route, four legs through the stopover otherwise.
func Legs(rt *models.Route) []Leg {
	fromID := normalize(rt.From)
	toID := normalize(rt.To)
	viaID := normalize(rt.Via)
	if fromID == "" || toID == "" {
		return nil
	}
	if viaID == "" {
		return []Leg{
			{Origin: fromID, Dest: toID},
			{Origin: toID, Dest: fromID},
		}
	}
	return []Leg{
		{Origin: fromID, Dest: viaID},
		{Origin: viaID, Dest: toID},
		{Origin: toID, Dest: viaID},
		{Origin: viaID, Dest: fromID},
	}
}

func SameAirport(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
