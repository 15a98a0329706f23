// Package catalog holds the immutable airport and aircraft reference data.
// A Catalog is built once at startup and only read afterwards, so it needs
// no locking beyond what the distance cache does internally.
package catalog

import (
	"slices"
	"strings"

	"airline_ops/internal/geo"
	"airline_ops/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

const distanceCacheSize = 8192

// DefaultTurnaroundMin applies to templates that do not set a turnaround.
const DefaultTurnaroundMin = 30

type Catalog struct {
	airports  []models.Airport
	byIdent   map[string]models.Airport
	aircraft  []models.Aircraft
	byID      map[string]models.Aircraft
	economics map[string]Economics
	distances *lru.Cache[string, float64]
}

// New indexes the given airports and aircraft templates. Templates missing
// from the economics table fall back to DefaultEconomics, and templates
// without a turnaround get DefaultTurnaroundMin.
func New(airports []models.Airport, aircraft []models.Aircraft) *Catalog {
	aircraft = slices.Clone(aircraft)
	for i := range aircraft {
		if aircraft[i].TurnaroundMin <= 0 {
			aircraft[i].TurnaroundMin = DefaultTurnaroundMin
		}
	}
	c := &Catalog{
		airports:  airports,
		byIdent:   make(map[string]models.Airport, len(airports)),
		aircraft:  aircraft,
		byID:      make(map[string]models.Aircraft, len(aircraft)),
		economics: make(map[string]Economics, len(templateEconomics)),
	}
	for _, a := range airports {
		c.byIdent[normalize(a.Ident)] = a
	}
	for _, a := range aircraft {
		c.byID[normalize(a.ID)] = a
	}
	for id, e := range templateEconomics {
		c.economics[id] = e
	}
	c.distances, _ = lru.New[string, float64](distanceCacheSize)
	return c
}

func (c *Catalog) Airports() []models.Airport {
	return c.airports
}

func (c *Catalog) Aircraft() []models.Aircraft {
	return c.aircraft
}

// Airport returns an airport by ident (IATA/ICAO).
func (c *Catalog) Airport(ident string) (models.Airport, bool) {
	ap, ok := c.byIdent[normalize(ident)]
	return ap, ok
}

func (c *Catalog) Template(id string) (models.Aircraft, bool) {
	ac, ok := c.byID[normalize(id)]
	return ac, ok
}

// Economics returns price, lead time and runway requirement for a template.
func (c *Catalog) Economics(id string) Economics {
	e := c.economics[normalize(id)]
	if e.Price <= 0 {
		e.Price = DefaultEconomics.Price
	}
	if e.LeadTicks <= 0 {
		e.LeadTicks = DefaultEconomics.LeadTicks
	}
	if e.RunwayM <= 0 {
		e.RunwayM = DefaultEconomics.RunwayM
	}
	return e
}

// Distance is the great-circle distance between two airports, memoised per pair.
func (c *Catalog) Distance(a, b models.Airport) float64 {
	key := pairKey(a.Ident, b.Ident)
	if d, ok := c.distances.Get(key); ok {
		return d
	}
	d := geo.Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	c.distances.Add(key, d)
	return d
}

func pairKey(a, b string) string {
	a, b = normalize(a), normalize(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
