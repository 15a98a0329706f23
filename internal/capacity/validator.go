// Package capacity checks a priced route against the committed network:
// fleet hours, airport slots and curfew windows.
package capacity

import (
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/models"
)

// OperatingMinutesPerDay is how long one aircraft may be scheduled each day.
const OperatingMinutesPerDay = 960.0

// AirportLookup resolves an airport ident.
type AirportLookup interface {
	Airport(ident string) (models.Airport, bool)
}

// Validate runs the fleet-hour, slot and curfew checks for route against
// the committed routes and fleet. It never mutates its inputs.
func Validate(route models.Route, committed []models.Route, fleet []models.OwnedCraft, airports AirportLookup) error {
	if err := checkFleetHours(route, committed, fleet); err != nil {
		return err
	}
	if err := checkSlots(route, committed, airports); err != nil {
		return err
	}
	return checkCurfew(route, committed, airports)
}

// ActiveCount counts active aircraft built from templateID.
func ActiveCount(fleet []models.OwnedCraft, templateID string) int {
	n := 0
	for _, ac := range fleet {
		if strings.EqualFold(ac.TemplateID, templateID) && ac.Status == models.StatusActive {
			n++
		}
	}
	return n
}

// ScheduledMinutes sums block minutes times frequency per template.
func ScheduledMinutes(routes []models.Route) map[string]float64 {
	out := make(map[string]float64)
	for _, rt := range routes {
		out[strings.ToUpper(rt.AircraftID)] += rt.BlockMinutes * float64(rt.FrequencyPerDay)
	}
	return out
}

func checkFleetHours(route models.Route, committed []models.Route, fleet []models.OwnedCraft) error {
	activeCount := ActiveCount(fleet, route.AircraftID)
	if activeCount == 0 {
		return apperrors.Newf(apperrors.CodeNoActiveAircraft, "no active %s aircraft available", route.AircraftID)
	}
	totalMins := route.BlockMinutes * float64(route.FrequencyPerDay)
	for _, rt := range committed {
		if strings.EqualFold(rt.AircraftID, route.AircraftID) {
			totalMins += rt.BlockMinutes * float64(rt.FrequencyPerDay)
		}
	}
	if limit := float64(activeCount) * OperatingMinutesPerDay; totalMins > limit {
		return apperrors.Newf(apperrors.CodeFleetHoursExceeded,
			"insufficient aircraft time (%.0f/%.0f mins/day for %s fleet)", totalMins, limit, route.AircraftID)
	}
	return nil
}

func checkSlots(route models.Route, committed []models.Route, airports AirportLookup) error {
	slotUse := make(map[string]int)
	add := func(rt models.Route) {
		if rt.FrequencyPerDay == 0 {
			return
		}
		for _, ident := range rt.Airports() {
			if ident != "" {
				slotUse[strings.ToUpper(ident)] += rt.FrequencyPerDay
			}
		}
	}
	add(route)
	for _, rt := range committed {
		add(rt)
	}
	for _, ident := range sortedKeys(slotUse) {
		used := slotUse[ident]
		if ap, ok := airports.Airport(ident); ok && ap.SlotsPerDay > 0 && used > ap.SlotsPerDay {
			return apperrors.Newf(apperrors.CodeSlotLimitExceeded, "slot limit exceeded at %s (%d/%d)", ident, used, ap.SlotsPerDay)
		}
	}
	return nil
}

func checkCurfew(route models.Route, committed []models.Route, airports AirportLookup) error {
	blockUse := make(map[string]float64)
	add := func(rt models.Route) {
		if rt.FrequencyPerDay == 0 || rt.BlockMinutes <= 0 {
			return
		}
		for _, ident := range rt.Airports() {
			if ident != "" {
				blockUse[strings.ToUpper(ident)] += rt.BlockMinutes * float64(rt.FrequencyPerDay)
			}
		}
	}
	add(route)
	for _, rt := range committed {
		add(rt)
	}
	for _, ident := range sortedKeys(blockUse) {
		ap, ok := airports.Airport(ident)
		if !ok || !ap.Curfew {
			continue
		}
		mins := blockUse[ident]
		if avail := CurfewFreeMinutes(ap.CurfewStart, ap.CurfewEnd); mins > avail {
			return apperrors.Newf(apperrors.CodeCurfewExceeded, "curfew hours limit at %s (%.0f/%.0f mins)", ident, mins, avail)
		}
	}
	return nil
}

// CurfewFreeMinutes is the daily open window for a curfew from startHour to
// endHour, wrapping past midnight when start > end.
func CurfewFreeMinutes(startHour, endHour int) float64 {
	if startHour == endHour {
		return 24 * 60
	}
	var blocked int
	if startHour < endHour {
		blocked = endHour - startHour
	} else {
		blocked = (24 - startHour) + endHour
	}
	open := 24 - blocked
	if open < 0 {
		open = 0
	}
	return float64(open) * 60
}

// MarketKey identifies a market regardless of direction.
func MarketKey(a, b string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a < b {
		return a + "-" + b
	}
	return b + "-" + a
}

// MarketExists reports if a route already serves from/to in either direction.
func MarketExists(routes []models.Route, from, to string) bool {
	key := MarketKey(from, to)
	for _, rt := range routes {
		if MarketKey(rt.From, rt.To) == key {
			return true
		}
	}
	return false
}

// sortedKeys keeps failure messages deterministic when several airports overflow.
func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
