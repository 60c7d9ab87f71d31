package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"realestate-leads/models"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

const (
	maxCommissionPct = 10
	// maxSaveAttempts bounds the reload-and-retry loop when concurrent
	// writers keep bumping a deal's version.
	maxSaveAttempts = 20
)

var (
	// ErrDuplicateDeal is returned when the agent already has an active deal
	// on the property.
	ErrDuplicateDeal = errors.New("an active deal already exists for this property")
	// ErrInvalidStatus is returned for an unknown pipeline status.
	ErrInvalidStatus = errors.New("invalid deal status")
	// ErrForbidden is returned when an agent touches another agent's deal.
	ErrForbidden = errors.New("deal belongs to another agent")
)

// ValidationError reports a malformed deal request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

// CreateDealInput opens a deal on a stored property.
type CreateDealInput struct {
	PropertyID           string   `json:"propertyId"`
	AgentID              string   `json:"-"`
	OriginalPrice        float64  `json:"originalPrice"`
	CommissionPercentage *float64 `json:"commissionPercentage,omitempty"`
	ContactName          string   `json:"contactName"`
	ContactPhone         string   `json:"contactPhone"`
	ContactEmail         string   `json:"contactEmail"`
}

// DealDetails is a partial update; nil and empty fields are left unchanged.
type DealDetails struct {
	FinalPrice      *float64 `json:"finalPrice,omitempty"`
	PotentialProfit *float64 `json:"potentialProfit,omitempty"`
	ContactName     string   `json:"contactName"`
	ContactPhone    string   `json:"contactPhone"`
	ContactEmail    string   `json:"contactEmail"`
}

// DealStats summarises an agent's pipeline.
type DealStats struct {
	TotalDeals      int                       `json:"totalDeals"`
	ActiveDeals     int                       `json:"activeDeals"`
	ClosedDeals     int                       `json:"closedDeals"`
	TotalCommission float64                   `json:"totalCommission"`
	DealsByStatus   map[models.DealStatus]int `json:"dealsByStatus"`
}

// DealService manages the sales pipeline.
type DealService struct {
	properties    storage.PropertyStore
	deals         storage.DealStore
	defaultCommPc float64
	logger        *utils.Logger
	now           func() time.Time
}

func NewDealService(properties storage.PropertyStore, deals storage.DealStore, defaultCommissionPct float64, logger *utils.Logger) *DealService {
	return &DealService{
		properties:    properties,
		deals:         deals,
		defaultCommPc: defaultCommissionPct,
		logger:        logger.With("deals"),
		now:           time.Now,
	}
}

func (s *DealService) Create(ctx context.Context, in CreateDealInput) (*models.Deal, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return nil, &ValidationError{Field: "agentId", Reason: "required"}
	}
	if strings.TrimSpace(in.PropertyID) == "" {
		return nil, &ValidationError{Field: "propertyId", Reason: "required"}
	}
	if in.OriginalPrice <= 0 {
		return nil, &ValidationError{Field: "originalPrice", Reason: "must be positive"}
	}
	pct := s.defaultCommPc
	if in.CommissionPercentage != nil {
		pct = *in.CommissionPercentage
	}
	if pct < 0 || pct > maxCommissionPct {
		return nil, &ValidationError{Field: "commissionPercentage", Reason: fmt.Sprintf("must be between 0 and %d", maxCommissionPct)}
	}

	if _, err := s.properties.Get(ctx, in.PropertyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("property %s: %w", in.PropertyID, ErrNotFound)
		}
		return nil, err
	}

	_, err := s.deals.FindActiveDeal(ctx, in.PropertyID, in.AgentID)
	switch {
	case err == nil:
		return nil, ErrDuplicateDeal
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	now := s.now()
	d := &models.Deal{
		ID:                   uuid.NewString(),
		PropertyID:           in.PropertyID,
		AgentID:              in.AgentID,
		Status:               models.DealInterested,
		OriginalPrice:        in.OriginalPrice,
		CommissionPercentage: pct,
		InterestedAt:         now,
		Notes:                []models.DealNote{},
		History:              []models.StatusChange{},
		ContactName:          strings.TrimSpace(in.ContactName),
		ContactPhone:         strings.TrimSpace(in.ContactPhone),
		ContactEmail:         strings.TrimSpace(in.ContactEmail),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.deals.CreateDeal(ctx, d); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateDeal
		}
		return nil, err
	}
	s.logger.Info("Agent %s opened deal %s on property %s", d.AgentID, d.ID, d.PropertyID)
	return d, nil
}

// Get returns a deal owned by agentID. An empty agentID skips the
// ownership check.
func (s *DealService) Get(ctx context.Context, id, agentID string) (*models.Deal, error) {
	d, err := s.deals.GetDeal(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("deal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if agentID != "" && d.AgentID != agentID {
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *DealService) List(ctx context.Context, agentID string, status models.DealStatus, p models.Page) ([]*models.Deal, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.deals.ListDeals(ctx, agentID, status, p)
}

// UpdateStatus moves the deal to status and stamps the matching milestone.
func (s *DealService) UpdateStatus(ctx context.Context, id, agentID string, status models.DealStatus) (*models.Deal, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	d, err := s.update(ctx, id, agentID, func(d *models.Deal) {
		now := s.now()
		if status != d.Status {
			d.History = append(d.History, models.StatusChange{From: d.Status, To: status, At: now})
		}
		d.Status = status
		switch status {
		case models.DealContacted:
			d.ContactedAt = &now
		case models.DealViewingScheduled:
			d.ViewingScheduledAt = &now
		case models.DealOfferMade:
			d.OfferMadeAt = &now
		case models.DealClosed:
			d.ClosedAt = &now
		case models.DealCancelled:
			d.CancelledAt = &now
		}
		d.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Deal %s moved to %s", d.ID, status)
	return d, nil
}

func (s *DealService) AddNote(ctx context.Context, id, agentID, content string) (*models.Deal, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "required"}
	}
	return s.update(ctx, id, agentID, func(d *models.Deal) {
		now := s.now()
		d.Notes = append(d.Notes, models.DealNote{
			ID:        uuid.NewString(),
			Content:   content,
			CreatedBy: agentID,
			CreatedAt: now,
		})
		d.UpdatedAt = now
	})
}

// UpdateDetails applies upd and recomputes the commission from the final price.
func (s *DealService) UpdateDetails(ctx context.Context, id, agentID string, upd DealDetails) (*models.Deal, error) {
	if upd.FinalPrice != nil && *upd.FinalPrice < 0 {
		return nil, &ValidationError{Field: "finalPrice", Reason: "must not be negative"}
	}
	if upd.PotentialProfit != nil && *upd.PotentialProfit < 0 {
		return nil, &ValidationError{Field: "potentialProfit", Reason: "must not be negative"}
	}
	return s.update(ctx, id, agentID, func(d *models.Deal) {
		if upd.FinalPrice != nil {
			d.FinalPrice = *upd.FinalPrice
		}
		if upd.PotentialProfit != nil {
			d.PotentialProfit = *upd.PotentialProfit
		}
		if v := strings.TrimSpace(upd.ContactName); v != "" {
			d.ContactName = v
		}
		if v := strings.TrimSpace(upd.ContactPhone); v != "" {
			d.ContactPhone = v
		}
		if v := strings.TrimSpace(upd.ContactEmail); v != "" {
			d.ContactEmail = v
		}
		d.CommissionAmount = Commission(d.FinalPrice, d.CommissionPercentage)
		d.UpdatedAt = s.now()
	})
}

// update loads the deal, applies change and saves it. When another writer
// saved in between, it reloads and applies change again.
func (s *DealService) update(ctx context.Context, id, agentID string, change func(*models.Deal)) (*models.Deal, error) {
	for attempt := 1; ; attempt++ {
		d, err := s.Get(ctx, id, agentID)
		if err != nil {
			return nil, err
		}
		change(d)
		err = s.deals.SaveDeal(ctx, d)
		switch {
		case err == nil:
			return d, nil
		case errors.Is(err, storage.ErrDuplicate):
			return nil, ErrDuplicateDeal
		case errors.Is(err, storage.ErrConflict) && attempt < maxSaveAttempts:
			s.logger.Debug("Deal %s changed underneath us, retrying (attempt %d)", id, attempt)
		default:
			return nil, fmt.Errorf("save deal %s: %w", id, err)
		}
	}
}

// Stats aggregates the deals of agentID, or of every agent when it is empty.
func (s *DealService) Stats(ctx context.Context, agentID string) (*DealStats, error) {
	deals, _, err := s.deals.ListDeals(ctx, agentID, "", models.Page{})
	if err != nil {
		return nil, err
	}
	st := &DealStats{DealsByStatus: make(map[models.DealStatus]int)}
	total := decimal.Zero
	for _, d := range deals {
		st.TotalDeals++
		st.DealsByStatus[d.Status]++
		if d.IsActive() {
			st.ActiveDeals++
		}
		if d.Status == models.DealClosed {
			st.ClosedDeals++
			total = total.Add(decimal.NewFromFloat(d.CommissionAmount))
		}
	}
	st.TotalCommission = total.Round(0).InexactFloat64()
	return st, nil
}

// Commission is round(finalPrice * pct / 100) in whole shekels.
func Commission(finalPrice, pct float64) float64 {
	if finalPrice <= 0 || pct <= 0 {
		return 0
	}
	amount := decimal.NewFromFloat(finalPrice).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return amount.InexactFloat64()
}
