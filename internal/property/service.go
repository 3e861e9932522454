package property

import (
	"context"
	"fmt"

	"github.com/evcraddock/johap/internal/parcel"
)

// Lookuper resolves an address to a parcel.
type Lookuper interface {
	Lookup(ctx context.Context, address string) (*parcel.Result, error)
}

// Service provides unit business logic.
type Service struct {
	repo   *Repository
	lookup Lookuper
}

// NewService creates a unit service. A nil lookup limits Add to units with
// an explicit parcel number.
func NewService(repo *Repository, lookup Lookuper) *Service {
	return &Service{repo: repo, lookup: lookup}
}

// AddInput describes a unit to register.
type AddInput struct {
	Address      string   `json:"address"`
	Dong         string   `json:"dong"`
	Ho           string   `json:"ho"`
	PNU          string   `json:"pnu"`
	LandArea     *float64 `json:"land_area"`
	BuildingArea *float64 `json:"building_area"`
}

// Add registers a unit in a union. Without a parcel number the address is
// resolved through the parcel lookup; this is the only operation that hits
// an external API.
func (s *Service) Add(ctx context.Context, unionID int64, in AddInput) (*Unit, error) {
	u := &Unit{
		UnionID:      unionID,
		PNU:          in.PNU,
		Dong:         in.Dong,
		Ho:           in.Ho,
		Address:      in.Address,
		LandArea:     in.LandArea,
		BuildingArea: in.BuildingArea,
	}

	if u.PNU == "" {
		if s.lookup == nil {
			return nil, ErrLookupUnavailable
		}
		result, err := s.lookup.Lookup(ctx, NormalizeAddress(in.Address))
		if err != nil {
			return nil, fmt.Errorf("looking up parcel: %w", err)
		}
		u.PNU = result.PNU
		u.Address = result.Address
		u.Latitude = &result.Latitude
		u.Longitude = &result.Longitude
		u.RawJSON = result.RawJSON
	}

	saved, err := s.repo.Insert(u)
	if err != nil {
		return nil, fmt.Errorf("saving unit: %w", err)
	}
	return saved, nil
}
