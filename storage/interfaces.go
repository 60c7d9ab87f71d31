package storage

import (
	"context"
	"errors"

	"realestate-leads/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a write would give an agent a second
	// active deal on the same property.
	ErrDuplicate = errors.New("storage: duplicate active deal")
	// ErrConflict is returned by SaveDeal when the deal changed since it
	// was read.
	ErrConflict = errors.New("storage: deal modified concurrently")
)

// Stats is the aggregate over active listings.
type Stats struct {
	TotalProperties int
	HotDeals        int
	AveragePrice    float64
	TopCities       []models.CityCount
}

// PropertyStore is the interface any listing storage backend must satisfy.
type PropertyStore interface {
	// InsertNew stores listings whose source+sourceID is not yet present and
	// returns the ones actually inserted.
	InsertNew(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
	Find(ctx context.Context, f models.SearchFilter, p models.Page) ([]*models.Listing, int, error)
	Comparables(ctx context.Context, q models.ComparableQuery) ([]*models.Listing, error)
	HotDeals(ctx context.Context, f models.SearchFilter, limit int) ([]*models.Listing, error)
	All(ctx context.Context) ([]*models.Listing, error)
	Stats(ctx context.Context) (*Stats, error)
	Cities(ctx context.Context) ([]string, error)
	Close() error
}

// DealStore persists the sales pipeline. Implementations enforce at most one
// active deal per property and agent.
type DealStore interface {
	// CreateDeal returns ErrDuplicate when the agent already has an active
	// deal on the property.
	CreateDeal(ctx context.Context, d *models.Deal) error
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
	// SaveDeal writes d only if the stored version still equals d.Version,
	// then increments d.Version. A stale d yields ErrConflict.
	SaveDeal(ctx context.Context, d *models.Deal) error
	ListDeals(ctx context.Context, agentID string, status models.DealStatus, p models.Page) ([]*models.Deal, int, error)
	FindActiveDeal(ctx context.Context, propertyID, agentID string) (*models.Deal, error)
}

// Store bundles both concerns for backends that serve both.
type Store interface {
	PropertyStore
	DealStore
}

// RawListingWriter is the interface for persisting unprocessed feed data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
