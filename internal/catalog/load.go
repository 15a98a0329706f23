package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"airline_ops/internal/models"
)

// LoadAirportsCSV parses an OurAirports-style CSV file.
func LoadAirportsCSV(path string) ([]models.Airport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	airports, err := ReadAirportsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	slog.Info("loaded airports", "component", "catalog", "count", len(airports), "path", path)
	return airports, nil
}

// ReadAirportsCSV parses airports, deriving runway, slots, fees and curfew
// from the airport type. Closed fields, heliports and seaplane bases are skipped.
func ReadAirportsCSV(r io.Reader) ([]models.Airport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	idx := func(name string) int {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}
	identIdx := idx("ident")
	typeIdx := idx("type")
	latIdx := idx("latitude_deg")
	lonIdx := idx("longitude_deg")
	if identIdx < 0 || typeIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, errors.New("missing required column (ident, type, latitude_deg, longitude_deg)")
	}
	idIdx := idx("id")
	nameIdx := idx("name")
	countryIdx := idx("iso_country")
	regionIdx := idx("iso_region")
	cityIdx := idx("municipality")
	iataIdx := idx("iata_code")
	icaoIdx := idx("icao_code")

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var airports []models.Airport
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		t := field(rec, typeIdx)
		if t == "closed" || t == "heliport" || t == "seaplane_base" {
			continue
		}
		lat, err := strconv.ParseFloat(field(rec, latIdx), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(field(rec, lonIdx), 64)
		if err != nil {
			continue
		}

		airports = append(airports, models.Airport{
			ID:          field(rec, idIdx),
			Ident:       field(rec, identIdx),
			Type:        t,
			Name:        field(rec, nameIdx),
			Latitude:    lat,
			Longitude:   lon,
			Country:     field(rec, countryIdx),
			Region:      field(rec, regionIdx),
			City:        field(rec, cityIdx),
			IATA:        field(rec, iataIdx),
			ICAO:        field(rec, icaoIdx),
			RunwayM:     RunwayMetersForType(t),
			SlotsPerDay: SlotsForType(t),
			LandingFee:  LandingFeeForType(t),
			Curfew:      CurfewForType(t),
			CurfewStart: DefaultCurfewStart,
			CurfewEnd:   DefaultCurfewEnd,
		})
	}
	return airports, nil
}

// LoadAircraftJSON reads the aircraft template database.
func LoadAircraftJSON(path string) ([]models.Aircraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var aircraft []models.Aircraft
	if err := json.Unmarshal(data, &aircraft); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	slog.Info("loaded aircraft templates", "component", "catalog", "count", len(aircraft), "path", path)
	return aircraft, nil
}
