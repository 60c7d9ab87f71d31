package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"realestate-leads/models"
	"realestate-leads/scoring"
)

// MemoryStore keeps listings and deals in process memory. It backs tests
// and STORAGE_BACKEND=memory dry runs. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.Listing
	byKey    map[string]string
	order    []string
	deals    map[string]*models.Deal
	dealList []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*models.Listing),
		byKey: make(map[string]string),
		deals: make(map[string]*models.Deal),
	}
}

func (m *MemoryStore) InsertNew(_ context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		key := l.DedupKey()
		if _, dup := m.byKey[key]; dup {
			continue
		}
		cp := *l
		m.byID[cp.ID] = &cp
		m.byKey[key] = cp.ID
		m.order = append(m.order, cp.ID)
		inserted = append(inserted, l)
	}
	return inserted, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) Find(_ context.Context, f models.SearchFilter, p models.Page) ([]*models.Listing, int, error) {
	matched := m.filter(f.Matches)
	sortListings(matched, f.SortBy, f.Asc)
	return window(matched, p), len(matched), nil
}

func (m *MemoryStore) Comparables(_ context.Context, q models.ComparableQuery) ([]*models.Listing, error) {
	matched := m.filter(q.Matches)
	sortListings(matched, models.SortCreatedAt, false)
	return window(matched, models.Page{Limit: q.Limit}), nil
}

func (m *MemoryStore) HotDeals(_ context.Context, f models.SearchFilter, limit int) ([]*models.Listing, error) {
	f.HotOnly = true
	if f.Status == "" {
		f.Status = models.StatusActive
	}
	matched := m.filter(f.Matches)
	scoring.Rank(matched)
	return window(matched, models.Page{Limit: limit}), nil
}

func (m *MemoryStore) All(_ context.Context) ([]*models.Listing, error) {
	return m.filter(func(*models.Listing) bool { return true }), nil
}

func (m *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	active := m.filter(func(l *models.Listing) bool { return l.Status == models.StatusActive })

	s := &Stats{TotalProperties: len(active)}
	counts := make(map[string]int)
	var total float64
	for _, l := range active {
		total += l.Price
		if l.IsHotDeal {
			s.HotDeals++
		}
		counts[l.City]++
	}
	if len(active) > 0 {
		s.AveragePrice = total / float64(len(active))
	}
	s.TopCities = topCities(counts, 10)
	return s, nil
}

func (m *MemoryStore) Cities(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range m.filter(func(*models.Listing) bool { return true }) {
		if l.City == "" {
			continue
		}
		if _, ok := seen[l.City]; !ok {
			seen[l.City] = struct{}{}
			out = append(out, l.City)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) filter(keep func(*models.Listing) bool) []*models.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Listing
	for _, id := range m.order {
		if l := m.byID[id]; keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MemoryStore) CreateDeal(_ context.Context, d *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeDealExists(d) {
		return ErrDuplicate
	}
	m.deals[d.ID] = copyDeal(d)
	m.dealList = append(m.dealList, d.ID)
	return nil
}

func (m *MemoryStore) GetDeal(_ context.Context, id string) (*models.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.deals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDeal(d), nil
}

func (m *MemoryStore) SaveDeal(_ context.Context, d *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.deals[d.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != d.Version {
		return ErrConflict
	}
	if m.activeDealExists(d) {
		return ErrDuplicate
	}
	d.Version++
	m.deals[d.ID] = copyDeal(d)
	return nil
}

// activeDealExists reports whether another active deal holds d's property
// and agent. Callers hold m.mu.
func (m *MemoryStore) activeDealExists(d *models.Deal) bool {
	if !d.IsActive() {
		return false
	}
	for id, other := range m.deals {
		if id != d.ID && other.PropertyID == d.PropertyID && other.AgentID == d.AgentID && other.IsActive() {
			return true
		}
	}
	return false
}

func (m *MemoryStore) ListDeals(_ context.Context, agentID string, status models.DealStatus, p models.Page) ([]*models.Deal, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Deal
	for i := len(m.dealList) - 1; i >= 0; i-- {
		d := m.deals[m.dealList[i]]
		if agentID != "" && d.AgentID != agentID {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, copyDeal(d))
	}
	total := len(out)
	start, end := bounds(total, p)
	return out[start:end], total, nil
}

func (m *MemoryStore) FindActiveDeal(_ context.Context, propertyID, agentID string) (*models.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.dealList {
		d := m.deals[id]
		if d.PropertyID == propertyID && d.AgentID == agentID && d.IsActive() {
			return copyDeal(d), nil
		}
	}
	return nil, ErrNotFound
}

func copyDeal(d *models.Deal) *models.Deal {
	cp := *d
	cp.Notes = append([]models.DealNote(nil), d.Notes...)
	cp.History = append([]models.StatusChange(nil), d.History...)
	return &cp
}

func sortListings(ls []*models.Listing, by string, asc bool) {
	less := func(a, b *models.Listing) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch by {
	case models.SortPrice:
		less = func(a, b *models.Listing) bool { return a.Price < b.Price }
	case models.SortHotDealScore:
		less = func(a, b *models.Listing) bool { return a.HotDealScore < b.HotDealScore }
	}
	sort.SliceStable(ls, func(i, j int) bool {
		if asc {
			return less(ls[i], ls[j])
		}
		return less(ls[j], ls[i])
	})
}

func window(ls []*models.Listing, p models.Page) []*models.Listing {
	start, end := bounds(len(ls), p)
	return ls[start:end]
}

func bounds(n int, p models.Page) (int, int) {
	start := p.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

func topCities(counts map[string]int, limit int) []models.CityCount {
	out := make([]models.CityCount, 0, len(counts))
	for city, n := range counts {
		if strings.TrimSpace(city) == "" {
			continue
		}
		out = append(out, models.CityCount{City: city, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
