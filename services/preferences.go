package services

import (
	"fmt"
	"strings"

	"realestate-leads/models"
)

// PriceRange bounds a search by price; a zero bound is open.
type PriceRange struct {
	Min float64 `json:"min" form:"minPrice"`
	Max float64 `json:"max" form:"maxPrice"`
}

// Preferences is an agent's saved search for personalised hot deals.
type Preferences struct {
	Cities                  []string   `json:"cities" form:"cities"`
	Neighborhoods           []string   `json:"neighborhoods" form:"neighborhoods"`
	PriceRange              PriceRange `json:"priceRange"`
	PropertyTypes           []string   `json:"propertyTypes" form:"propertyTypes"`
	MinRooms                float64    `json:"minRooms" form:"minRooms"`
	MaxRooms                float64    `json:"maxRooms" form:"maxRooms"`
	MinSize                 float64    `json:"minSize" form:"minSize"`
	MaxSize                 float64    `json:"maxSize" form:"maxSize"`
	IncludeEvictionBuilding *bool      `json:"includeEvictionBuilding,omitempty" form:"includeEvictionBuilding"`
}

// Validate rejects inverted or negative ranges.
func (p Preferences) Validate() error {
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"price", p.PriceRange.Min, p.PriceRange.Max},
		{"rooms", p.MinRooms, p.MaxRooms},
		{"size", p.MinSize, p.MaxSize},
	}
	for _, r := range ranges {
		if r.min < 0 || r.max < 0 {
			return fmt.Errorf("%s range must not be negative", r.name)
		}
		if r.max > 0 && r.min > r.max {
			return fmt.Errorf("%s range is inverted: min %v > max %v", r.name, r.min, r.max)
		}
	}
	return nil
}

// Filter converts p into a hot-deal search over active listings. Eviction
// buildings are included unless explicitly opted out.
func (p Preferences) Filter() models.SearchFilter {
	f := models.SearchFilter{
		Cities:        compact(p.Cities),
		Neighborhoods: compact(p.Neighborhoods),
		PropertyTypes: compact(p.PropertyTypes),
		MinPrice:      p.PriceRange.Min,
		MaxPrice:      p.PriceRange.Max,
		MinRooms:      p.MinRooms,
		MaxRooms:      p.MaxRooms,
		MinSize:       p.MinSize,
		MaxSize:       p.MaxSize,
		HotOnly:       true,
		Status:        models.StatusActive,
		SortBy:        models.SortHotDealScore,
	}
	if p.IncludeEvictionBuilding != nil && !*p.IncludeEvictionBuilding {
		f.ExcludeEviction = true
	}
	return f
}

// compact trims entries, splits comma-joined values and drops blanks.
func compact(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
