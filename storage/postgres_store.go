package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realestate-leads/models"
)

const listingColumns = `id, address, city, neighborhood, property_type, rooms, size, price,
	price_per_sqm, condition, parking, elevator, balcony, garden, eviction_building,
	source_website, source_url, source_id, is_hot_deal, hot_deal_score,
	contact_name, contact_phone, contact_email, status, created_at, updated_at`

// comparablesQuery matches the cohort case-insensitively, like
// models.ComparableQuery.Matches.
const comparablesQuery = `SELECT ` + listingColumns + ` FROM properties
	WHERE id <> $1 AND status = 'active'
	  AND LOWER(city) = LOWER($2) AND LOWER(neighborhood) = LOWER($3)
	  AND LOWER(property_type) = LOWER($4) AND rooms BETWEEN $5 AND $6
	ORDER BY created_at DESC
	LIMIT $7`

// PostgresStore persists listings and deals to PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id                TEXT PRIMARY KEY,
			dedup_key         TEXT UNIQUE NOT NULL,
			address           TEXT NOT NULL,
			city              TEXT NOT NULL DEFAULT '',
			neighborhood      TEXT NOT NULL DEFAULT '',
			property_type     VARCHAR(32) NOT NULL,
			rooms             DOUBLE PRECISION NOT NULL,
			size              DOUBLE PRECISION NOT NULL,
			price             DOUBLE PRECISION NOT NULL,
			price_per_sqm     DOUBLE PRECISION NOT NULL DEFAULT 0,
			condition         VARCHAR(32) NOT NULL DEFAULT 'good',
			parking           BOOLEAN NOT NULL DEFAULT FALSE,
			elevator          BOOLEAN NOT NULL DEFAULT FALSE,
			balcony           BOOLEAN NOT NULL DEFAULT FALSE,
			garden            BOOLEAN NOT NULL DEFAULT FALSE,
			eviction_building BOOLEAN NOT NULL DEFAULT FALSE,
			source_website    VARCHAR(32) NOT NULL,
			source_url        TEXT NOT NULL DEFAULT '',
			source_id         TEXT NOT NULL DEFAULT '',
			is_hot_deal       BOOLEAN NOT NULL DEFAULT FALSE,
			hot_deal_score    INTEGER NOT NULL DEFAULT 0 CHECK (hot_deal_score BETWEEN 0 AND 100),
			contact_name      TEXT NOT NULL DEFAULT '',
			contact_phone     TEXT NOT NULL DEFAULT '',
			contact_email     TEXT NOT NULL DEFAULT '',
			status            VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_properties_city_nbhd ON properties(city, neighborhood);
		CREATE INDEX IF NOT EXISTS idx_properties_price     ON properties(price);
		CREATE INDEX IF NOT EXISTS idx_properties_hot       ON properties(is_hot_deal, hot_deal_score DESC);
		CREATE INDEX IF NOT EXISTS idx_properties_created   ON properties(created_at DESC);

		CREATE TABLE IF NOT EXISTS deals (
			id                    TEXT PRIMARY KEY,
			property_id           TEXT NOT NULL REFERENCES properties(id),
			agent_id              TEXT NOT NULL,
			status                VARCHAR(32) NOT NULL,
			original_price        DOUBLE PRECISION NOT NULL,
			final_price           DOUBLE PRECISION NOT NULL DEFAULT 0,
			commission_percentage DOUBLE PRECISION NOT NULL,
			commission_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
			potential_profit      DOUBLE PRECISION NOT NULL DEFAULT 0,
			interested_at         TIMESTAMPTZ NOT NULL,
			contacted_at          TIMESTAMPTZ,
			viewing_scheduled_at  TIMESTAMPTZ,
			offer_made_at         TIMESTAMPTZ,
			closed_at             TIMESTAMPTZ,
			cancelled_at          TIMESTAMPTZ,
			notes                 JSONB NOT NULL DEFAULT '[]',
			history               JSONB NOT NULL DEFAULT '[]',
			contact_name          TEXT NOT NULL DEFAULT '',
			contact_phone         TEXT NOT NULL DEFAULT '',
			contact_email         TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version               INTEGER NOT NULL DEFAULT 0
		);
		ALTER TABLE deals ADD COLUMN IF NOT EXISTS version INTEGER NOT NULL DEFAULT 0;

		CREATE INDEX IF NOT EXISTS idx_deals_agent_status ON deals(agent_id, status);
		CREATE INDEX IF NOT EXISTS idx_deals_property     ON deals(property_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_deals_one_active ON deals(property_id, agent_id)
			WHERE status NOT IN ('closed', 'cancelled');
	`)
	return err
}

// InsertNew batch-inserts listings, skipping any whose dedup key is
// already stored.
func (ps *PostgresStore) InsertNew(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	if len(listings) == 0 {
		return nil, nil
	}

	byID := make(map[string]*models.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	var inserted []*models.Listing
	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		ids, err := ps.insertBatch(ctx, listings[i:end])
		if err != nil {
			return inserted, err
		}
		for _, id := range ids {
			inserted = append(inserted, byID[id])
		}
	}
	return inserted, nil
}

func (ps *PostgresStore) insertBatch(ctx context.Context, batch []*models.Listing) ([]string, error) {
	const cols = 27
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		ph := make([]string, cols)
		for c := 0; c < cols; c++ {
			ph[c] = fmt.Sprintf("$%d", idx*cols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			l.ID, l.DedupKey(), l.Address, l.City, l.Neighborhood, l.PropertyType,
			l.Rooms, l.Size, l.Price, l.PricePerSquareMeter, l.Condition,
			l.Parking, l.Elevator, l.Balcony, l.Garden, l.EvictionBuilding,
			l.SourceWebsite, l.SourceURL, l.SourceID, l.IsHotDeal, l.HotDealScore,
			l.ContactName, l.ContactPhone, l.ContactEmail, l.Status, l.CreatedAt, l.UpdatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO properties (id, dedup_key, address, city, neighborhood, property_type,
			rooms, size, price, price_per_sqm, condition,
			parking, elevator, balcony, garden, eviction_building,
			source_website, source_url, source_id, is_hot_deal, hot_deal_score,
			contact_name, contact_phone, contact_email, status, created_at, updated_at)
		VALUES %s
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id
	`, strings.Join(valueStrings, ","))

	var ids []string
	if err := ps.db.SelectContext(ctx, &ids, query, valueArgs...); err != nil {
		return nil, fmt.Errorf("postgres: insert batch: %w", err)
	}
	return ids, nil
}

func (ps *PostgresStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	var l models.Listing
	err := ps.db.GetContext(ctx, &l, `SELECT `+listingColumns+` FROM properties WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", id, err)
	}
	return &l, nil
}

func (ps *PostgresStore) Find(ctx context.Context, f models.SearchFilter, p models.Page) ([]*models.Listing, int, error) {
	where, args := whereClause(f)

	var total int
	if err := ps.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM properties`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("postgres: count: %w", err)
	}

	query := `SELECT ` + listingColumns + ` FROM properties` + where + orderBy(f) + limitOffset(p, &args)
	var out []*models.Listing
	if err := ps.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("postgres: find: %w", err)
	}
	return out, total, nil
}

func (ps *PostgresStore) Comparables(ctx context.Context, q models.ComparableQuery) ([]*models.Listing, error) {
	var out []*models.Listing
	err := ps.db.SelectContext(ctx, &out, comparablesQuery, q.ExcludeID, q.City, q.Neighborhood, q.PropertyType, q.MinRooms, q.MaxRooms, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: comparables: %w", err)
	}
	return out, nil
}

func (ps *PostgresStore) HotDeals(ctx context.Context, f models.SearchFilter, limit int) ([]*models.Listing, error) {
	f.HotOnly = true
	if f.Status == "" {
		f.Status = models.StatusActive
	}
	where, args := whereClause(f)
	query := `SELECT ` + listingColumns + ` FROM properties` + where +
		` ORDER BY hot_deal_score DESC, created_at DESC` + limitOffset(models.Page{Limit: limit}, &args)

	var out []*models.Listing
	if err := ps.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: hot deals: %w", err)
	}
	return out, nil
}

// All retrieves every stored listing, used by the insight report.
func (ps *PostgresStore) All(ctx context.Context) ([]*models.Listing, error) {
	var out []*models.Listing
	if err := ps.db.SelectContext(ctx, &out, `SELECT `+listingColumns+` FROM properties ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	return out, nil
}

func (ps *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var row struct {
		Total int             `db:"total"`
		Hot   int             `db:"hot"`
		Avg   sql.NullFloat64 `db:"avg_price"`
	}
	err := ps.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_hot_deal) AS hot,
		       AVG(price) AS avg_price
		FROM properties WHERE status = 'active'
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}

	var cities []models.CityCount
	err = ps.db.SelectContext(ctx, &cities, `
		SELECT city, COUNT(*) AS count FROM properties
		WHERE status = 'active' AND city <> ''
		GROUP BY city ORDER BY count DESC, city
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: top cities: %w", err)
	}

	return &Stats{
		TotalProperties: row.Total,
		HotDeals:        row.Hot,
		AveragePrice:    row.Avg.Float64,
		TopCities:       cities,
	}, nil
}

func (ps *PostgresStore) Cities(ctx context.Context) ([]string, error) {
	var out []string
	if err := ps.db.SelectContext(ctx, &out, `SELECT DISTINCT city FROM properties WHERE city <> '' ORDER BY city`); err != nil {
		return nil, fmt.Errorf("postgres: cities: %w", err)
	}
	return out, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// whereClause renders f as a parameterised WHERE clause.
func whereClause(f models.SearchFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if len(f.Cities) > 0 {
		add("LOWER(city) = ANY($%d)", pq.Array(lowerAll(f.Cities)))
	}
	if len(f.Neighborhoods) > 0 {
		add("LOWER(neighborhood) = ANY($%d)", pq.Array(lowerAll(f.Neighborhoods)))
	}
	if len(f.PropertyTypes) > 0 {
		add("LOWER(property_type) = ANY($%d)", pq.Array(lowerAll(f.PropertyTypes)))
	}
	if f.SourceWebsite != "" {
		add("source_website = LOWER($%d)", f.SourceWebsite)
	}
	if f.MinPrice > 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= $%d", f.MaxPrice)
	}
	if f.MinRooms > 0 {
		add("rooms >= $%d", f.MinRooms)
	}
	if f.MaxRooms > 0 {
		add("rooms <= $%d", f.MaxRooms)
	}
	if f.MinSize > 0 {
		add("size >= $%d", f.MinSize)
	}
	if f.MaxSize > 0 {
		add("size <= $%d", f.MaxSize)
	}
	if f.HotOnly {
		conds = append(conds, "is_hot_deal")
	}
	if f.ExcludeEviction {
		conds = append(conds, "NOT eviction_building")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(f models.SearchFilter) string {
	col := "created_at"
	switch f.SortBy {
	case models.SortPrice:
		col = "price"
	case models.SortHotDealScore:
		col = "hot_deal_score"
	}
	dir := " DESC"
	if f.Asc {
		dir = " ASC"
	}
	return " ORDER BY " + col + dir + ", id"
}

func limitOffset(p models.Page, args *[]interface{}) string {
	var out string
	if p.Limit > 0 {
		*args = append(*args, p.Limit)
		out += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if p.Offset > 0 {
		*args = append(*args, p.Offset)
		out += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
