package catalog

// Economics is the per-template purchase and operating data that does not
// ship with the aircraft JSON.
type Economics struct {
	Price     float64
	LeadTicks int
	RunwayM   int
}

var DefaultEconomics = Economics{Price: 75_000_000, LeadTicks: 6, RunwayM: 1500}

var templateEconomics = map[string]Economics{
	"ATR72":      {26_000_000, 5, 1300},
	"CRJ9":       {44_000_000, 6, 1500},
	"E175":       {48_000_000, 6, 1600},
	"E190":       {52_000_000, 6, 1600},
	"E195E2":     {60_000_000, 7, 1700},
	"B737-700":   {82_000_000, 7, 1800},
	"B737-800":   {96_000_000, 8, 1800},
	"B737MAX8":   {120_000_000, 8, 1800},
	"A320":       {98_000_000, 8, 1800},
	"A320NEO":    {110_000_000, 8, 1800},
	"A321NEO":    {125_000_000, 9, 2000},
	"B767-300ER": {220_000_000, 10, 2600},
	"B777-300ER": {375_000_000, 11, 3000},
	"B787-9":     {292_000_000, 10, 2800},
	"A330-900":   {296_000_000, 10, 2900},
	"A350-900":   {317_000_000, 11, 3000},
	"B767-300F":  {220_000_000, 9, 2600},
	"B777F":      {352_000_000, 11, 3000},
	"A330-200F":  {240_000_000, 9, 2900},
	"B747-8F":    {419_000_000, 12, 3200},
	"B747-400":   {250_000_000, 12, 3100},
	"A380-800":   {445_000_000, 12, 3500},
}

// StarterTemplates seed a new game's fleet.
var StarterTemplates = []string{"A320", "B737-800", "E190"}

const (
	DefaultCurfewStart = 22
	DefaultCurfewEnd   = 6
)

func RunwayMetersForType(t string) int {
	switch t {
	case "large_airport":
		return 3200
	case "medium_airport":
		return 2200
	case "small_airport":
		return 1200
	default:
		return 1000
	}
}

func SlotsForType(t string) int {
	switch t {
	case "large_airport":
		return 200
	case "medium_airport":
		return 120
	case "small_airport":
		return 40
	default:
		return 20
	}
}

func LandingFeeForType(t string) float64 {
	switch t {
	case "large_airport":
		return 3500
	case "medium_airport":
		return 2000
	case "small_airport":
		return 800
	default:
		return 500
	}
}

func CurfewForType(t string) bool {
	return t == "large_airport" || t == "medium_airport"
}
