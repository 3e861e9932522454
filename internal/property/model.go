// Package property provides the parcel registry: the units a union's
// members can own.
package property

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound          = errors.New("unit not found")
	ErrAlreadyExists     = errors.New("unit already registered")
	ErrLookupUnavailable = errors.New("parcel lookup is not configured")
)

// Unit is one ownable unit: a parcel, or a dong/ho inside a building on it.
type Unit struct {
	ID           int64           `json:"id"`
	UnionID      int64           `json:"union_id"`
	PNU          string          `json:"pnu"`
	Dong         string          `json:"dong,omitempty"`
	Ho           string          `json:"ho,omitempty"`
	Address      string          `json:"address"`
	LandArea     *float64        `json:"land_area,omitempty"`
	BuildingArea *float64        `json:"building_area,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	RawJSON      json.RawMessage `json:"raw_json"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Label renders the unit for display, e.g. "잠실동 1 101동 1203호".
func (u *Unit) Label() string {
	parts := []string{u.Address}
	if u.Dong != "" {
		parts = append(parts, u.Dong+"동")
	}
	if u.Ho != "" {
		parts = append(parts, u.Ho+"호")
	}
	return strings.Join(parts, " ")
}

// NormalizeDong canonicalizes a building number: "0101동 " becomes "101".
func NormalizeDong(s string) string {
	return normalizeSuffixed(s, "동")
}

// NormalizeHo canonicalizes a unit number: "1203호" becomes "1203".
func NormalizeHo(s string) string {
	return normalizeSuffixed(s, "호")
}

func normalizeSuffixed(s, suffix string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}

// NormalizeAddress composes Hangul to NFC and collapses whitespace.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// scanUnit scans a unit from a database row.
func scanUnit(row interface{ Scan(...interface{}) error }) (*Unit, error) {
	var u Unit
	var landArea, buildingArea, lat, lng sql.NullFloat64
	var rawJSON string

	err := row.Scan(
		&u.ID, &u.UnionID, &u.PNU, &u.Dong, &u.Ho, &u.Address,
		&landArea, &buildingArea, &lat, &lng, &rawJSON, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.LandArea = nullFloat(landArea)
	u.BuildingArea = nullFloat(buildingArea)
	u.Latitude = nullFloat(lat)
	u.Longitude = nullFloat(lng)
	u.RawJSON = json.RawMessage(rawJSON)
	return &u, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
