package services

import (
	"context"
	"errors"
	"fmt"

	"realestate-leads/metrics"
	"realestate-leads/models"
	"realestate-leads/scoring"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

const (
	cohortRoomsTolerance = 0.5
	cohortLimit          = 10
)

// ErrNotFound is returned when a requested property or deal does not exist.
var ErrNotFound = errors.New("not found")

// AnalysisService answers market-analysis queries for stored listings.
type AnalysisService struct {
	store   storage.PropertyStore
	engine  *scoring.Engine
	metrics *metrics.Registry
	logger  *utils.Logger
}

func NewAnalysisService(store storage.PropertyStore, engine *scoring.Engine, m *metrics.Registry, logger *utils.Logger) *AnalysisService {
	return &AnalysisService{store: store, engine: engine, metrics: m, logger: logger.With("analysis")}
}

// Analyze compares property id against up to ten active listings in the same
// city and neighborhood, of the same type, within half a room of its size.
func (s *AnalysisService) Analyze(ctx context.Context, id string) (*models.Listing, models.MarketAnalysis, error) {
	l, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.MarketAnalysis{}, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, models.MarketAnalysis{}, err
	}

	cohort, err := s.store.Comparables(ctx, CohortQuery(l))
	if err != nil {
		return nil, models.MarketAnalysis{}, fmt.Errorf("load comparables for %s: %w", id, err)
	}

	analysis, err := s.engine.Analyze(l, cohort)
	if err != nil {
		return nil, models.MarketAnalysis{}, err
	}
	if s.metrics != nil {
		s.metrics.Analyses.Inc()
	}
	s.logger.Debug("Analyzed %s against %d comparables: %d%%", id, len(cohort), analysis.PriceComparisonPercent)
	return l, analysis, nil
}

// CohortQuery describes the comparable set for l.
func CohortQuery(l *models.Listing) models.ComparableQuery {
	return models.ComparableQuery{
		ExcludeID:    l.ID,
		City:         l.City,
		Neighborhood: l.Neighborhood,
		PropertyType: l.PropertyType,
		MinRooms:     l.Rooms - cohortRoomsTolerance,
		MaxRooms:     l.Rooms + cohortRoomsTolerance,
		Limit:        cohortLimit,
	}
}
