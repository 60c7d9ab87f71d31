package models

import "strings"

// Sort keys accepted by SearchFilter.SortBy.
const (
	SortCreatedAt    = "created_at"
	SortPrice        = "price"
	SortHotDealScore = "hot_deal_score"
)

// SearchFilter narrows a listing query. Zero values mean "no constraint".
type SearchFilter struct {
	Cities          []string
	Neighborhoods   []string
	PropertyTypes   []string
	SourceWebsite   string
	MinPrice        float64
	MaxPrice        float64
	MinRooms        float64
	MaxRooms        float64
	MinSize         float64
	MaxSize         float64
	HotOnly         bool
	ExcludeEviction bool
	Status          string

	SortBy string
	Asc    bool
}

// Page is an offset/limit window.
type Page struct {
	Limit  int
	Offset int
}

// ComparableQuery selects the cohort for a market analysis.
type ComparableQuery struct {
	ExcludeID    string
	City         string
	Neighborhood string
	PropertyType string
	MinRooms     float64
	MaxRooms     float64
	Limit        int
}

// Matches reports whether l satisfies every constraint in f. Backends that
// cannot push a filter down to the database use it directly.
func (f SearchFilter) Matches(l *Listing) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if len(f.Cities) > 0 && !containsFold(f.Cities, l.City) {
		return false
	}
	if len(f.Neighborhoods) > 0 && !containsFold(f.Neighborhoods, l.Neighborhood) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !containsFold(f.PropertyTypes, l.PropertyType) {
		return false
	}
	if f.SourceWebsite != "" && !strings.EqualFold(f.SourceWebsite, l.SourceWebsite) {
		return false
	}
	if f.MinPrice > 0 && l.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && l.Price > f.MaxPrice {
		return false
	}
	if f.MinRooms > 0 && l.Rooms < f.MinRooms {
		return false
	}
	if f.MaxRooms > 0 && l.Rooms > f.MaxRooms {
		return false
	}
	if f.MinSize > 0 && l.Size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && l.Size > f.MaxSize {
		return false
	}
	if f.HotOnly && !l.IsHotDeal {
		return false
	}
	if f.ExcludeEviction && l.EvictionBuilding {
		return false
	}
	return true
}

// Matches reports whether l belongs to the cohort described by q.
func (q ComparableQuery) Matches(l *Listing) bool {
	return l.ID != q.ExcludeID &&
		l.Status == StatusActive &&
		strings.EqualFold(l.City, q.City) &&
		strings.EqualFold(l.Neighborhood, q.Neighborhood) &&
		strings.EqualFold(l.PropertyType, q.PropertyType) &&
		l.Rooms >= q.MinRooms && l.Rooms <= q.MaxRooms
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}
