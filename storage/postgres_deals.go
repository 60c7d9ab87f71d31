package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"realestate-leads/models"
)

const dealColumns = `id, property_id, agent_id, status, original_price, final_price,
	commission_percentage, commission_amount, potential_profit,
	interested_at, contacted_at, viewing_scheduled_at, offer_made_at, closed_at, cancelled_at,
	notes, history, contact_name, contact_phone, contact_email, created_at, updated_at, version`

// dealRow is the relational shape of a deal; notes and history live in JSONB.
type dealRow struct {
	ID                   string       `db:"id"`
	PropertyID           string       `db:"property_id"`
	AgentID              string       `db:"agent_id"`
	Status               string       `db:"status"`
	OriginalPrice        float64      `db:"original_price"`
	FinalPrice           float64      `db:"final_price"`
	CommissionPercentage float64      `db:"commission_percentage"`
	CommissionAmount     float64      `db:"commission_amount"`
	PotentialProfit      float64      `db:"potential_profit"`
	InterestedAt         time.Time    `db:"interested_at"`
	ContactedAt          sql.NullTime `db:"contacted_at"`
	ViewingScheduledAt   sql.NullTime `db:"viewing_scheduled_at"`
	OfferMadeAt          sql.NullTime `db:"offer_made_at"`
	ClosedAt             sql.NullTime `db:"closed_at"`
	CancelledAt          sql.NullTime `db:"cancelled_at"`
	Notes                []byte       `db:"notes"`
	History              []byte       `db:"history"`
	ContactName          string       `db:"contact_name"`
	ContactPhone         string       `db:"contact_phone"`
	ContactEmail         string       `db:"contact_email"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
	Version              int          `db:"version"`
}

func toDealRow(d *models.Deal) (*dealRow, error) {
	notes, err := json.Marshal(nonNilNotes(d.Notes))
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	history, err := json.Marshal(nonNilHistory(d.History))
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return &dealRow{
		ID:                   d.ID,
		PropertyID:           d.PropertyID,
		AgentID:              d.AgentID,
		Status:               string(d.Status),
		OriginalPrice:        d.OriginalPrice,
		FinalPrice:           d.FinalPrice,
		CommissionPercentage: d.CommissionPercentage,
		CommissionAmount:     d.CommissionAmount,
		PotentialProfit:      d.PotentialProfit,
		InterestedAt:         d.InterestedAt,
		ContactedAt:          nullTime(d.ContactedAt),
		ViewingScheduledAt:   nullTime(d.ViewingScheduledAt),
		OfferMadeAt:          nullTime(d.OfferMadeAt),
		ClosedAt:             nullTime(d.ClosedAt),
		CancelledAt:          nullTime(d.CancelledAt),
		Notes:                notes,
		History:              history,
		ContactName:          d.ContactName,
		ContactPhone:         d.ContactPhone,
		ContactEmail:         d.ContactEmail,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		Version:              d.Version,
	}, nil
}

func (r *dealRow) toDeal() (*models.Deal, error) {
	d := &models.Deal{
		ID:                   r.ID,
		PropertyID:           r.PropertyID,
		AgentID:              r.AgentID,
		Status:               models.DealStatus(r.Status),
		OriginalPrice:        r.OriginalPrice,
		FinalPrice:           r.FinalPrice,
		CommissionPercentage: r.CommissionPercentage,
		CommissionAmount:     r.CommissionAmount,
		PotentialProfit:      r.PotentialProfit,
		InterestedAt:         r.InterestedAt,
		ContactedAt:          timePtr(r.ContactedAt),
		ViewingScheduledAt:   timePtr(r.ViewingScheduledAt),
		OfferMadeAt:          timePtr(r.OfferMadeAt),
		ClosedAt:             timePtr(r.ClosedAt),
		CancelledAt:          timePtr(r.CancelledAt),
		ContactName:          r.ContactName,
		ContactPhone:         r.ContactPhone,
		ContactEmail:         r.ContactEmail,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		Version:              r.Version,
	}
	if len(r.Notes) > 0 {
		if err := json.Unmarshal(r.Notes, &d.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for deal %s: %w", r.ID, err)
		}
	}
	if len(r.History) > 0 {
		if err := json.Unmarshal(r.History, &d.History); err != nil {
			return nil, fmt.Errorf("decode history for deal %s: %w", r.ID, err)
		}
	}
	return d, nil
}

func (ps *PostgresStore) CreateDeal(ctx context.Context, d *models.Deal) error {
	row, err := toDealRow(d)
	if err != nil {
		return fmt.Errorf("postgres: create deal: %w", err)
	}
	_, err = ps.db.NamedExecContext(ctx, `
		INSERT INTO deals (`+dealColumns+`)
		VALUES (:id, :property_id, :agent_id, :status, :original_price, :final_price,
			:commission_percentage, :commission_amount, :potential_profit,
			:interested_at, :contacted_at, :viewing_scheduled_at, :offer_made_at, :closed_at, :cancelled_at,
			:notes, :history, :contact_name, :contact_phone, :contact_email, :created_at, :updated_at, :version)
	`, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("postgres: create deal: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	var row dealRow
	err := ps.db.GetContext(ctx, &row, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get deal %s: %w", id, err)
	}
	return row.toDeal()
}

func (ps *PostgresStore) SaveDeal(ctx context.Context, d *models.Deal) error {
	row, err := toDealRow(d)
	if err != nil {
		return fmt.Errorf("postgres: save deal: %w", err)
	}
	res, err := ps.db.NamedExecContext(ctx, `
		UPDATE deals SET
			status = :status, final_price = :final_price,
			commission_percentage = :commission_percentage, commission_amount = :commission_amount,
			potential_profit = :potential_profit,
			contacted_at = :contacted_at, viewing_scheduled_at = :viewing_scheduled_at,
			offer_made_at = :offer_made_at, closed_at = :closed_at, cancelled_at = :cancelled_at,
			notes = :notes, history = :history,
			contact_name = :contact_name, contact_phone = :contact_phone, contact_email = :contact_email,
			updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
	`, row)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("postgres: save deal %s: %w", d.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: save deal %s: %w", d.ID, err)
	}
	if n == 0 {
		var exists bool
		if err := ps.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM deals WHERE id = $1)`, d.ID); err != nil {
			return fmt.Errorf("postgres: save deal %s: %w", d.ID, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	d.Version++
	return nil
}

func (ps *PostgresStore) ListDeals(ctx context.Context, agentID string, status models.DealStatus, p models.Page) ([]*models.Deal, int, error) {
	where := " WHERE ($1 = '' OR agent_id = $1) AND ($2 = '' OR status = $2)"
	args := []interface{}{agentID, string(status)}

	var total int
	if err := ps.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM deals`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("postgres: count deals: %w", err)
	}

	query := `SELECT ` + dealColumns + ` FROM deals` + where + ` ORDER BY created_at DESC, id` + limitOffset(p, &args)
	var rows []dealRow
	if err := ps.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("postgres: list deals: %w", err)
	}

	out := make([]*models.Deal, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toDeal()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, nil
}

func (ps *PostgresStore) FindActiveDeal(ctx context.Context, propertyID, agentID string) (*models.Deal, error) {
	var row dealRow
	err := ps.db.GetContext(ctx, &row, `
		SELECT `+dealColumns+` FROM deals
		WHERE property_id = $1 AND agent_id = $2 AND status NOT IN ('closed', 'cancelled')
		LIMIT 1
	`, propertyID, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find active deal: %w", err)
	}
	return row.toDeal()
}

// isUniqueViolation matches SQLSTATE 23505 from the one-active-deal index.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nonNilNotes(n []models.DealNote) []models.DealNote {
	if n == nil {
		return []models.DealNote{}
	}
	return n
}

func nonNilHistory(h []models.StatusChange) []models.StatusChange {
	if h == nil {
		return []models.StatusChange{}
	}
	return h
}
