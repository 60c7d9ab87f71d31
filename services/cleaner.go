package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"realestate-leads/models"
	"realestate-leads/utils"
)

var (
	// priceRegexp captures the first digit group, thousands separators included
	priceRegexp = regexp.MustCompile(`\d[\d,]*`)
	// roomsRegexp captures a possibly fractional room count ("3.5 rooms")
	roomsRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	// sizeRegexp captures whole square meters
	sizeRegexp = regexp.MustCompile(`(\d+)`)
)

// Cleaner transforms RawListings into clean, validated Listings.
type Cleaner struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger.With("cleaner"), now: time.Now}
}

// Clean parses raw listings, dropping rows without a price, room count,
// size or address, and duplicates of the same source listing.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := utils.NewKeySet()
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		if r == nil {
			continue
		}
		l, ok := c.cleanOne(r)
		if !ok {
			continue
		}
		if !seen.Add(l.DedupKey()) {
			c.logger.Debug("Duplicate listing skipped: %s", l.DedupKey())
			continue
		}
		result = append(result, l)
	}

	c.logger.Info("Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func (c *Cleaner) cleanOne(r *models.RawListing) (*models.Listing, bool) {
	price := parsePrice(r.RawPrice)
	rooms := parseRooms(r.RawRooms)
	size := parseSize(r.RawSize)
	address := normaliseText(r.Address)

	if price <= 0 || rooms <= 0 || size <= 0 || address == "" {
		c.logger.Warn("Dropping incomplete listing %s/%s (price=%q rooms=%q size=%q address=%q)",
			r.Source, r.SourceID, r.RawPrice, r.RawRooms, r.RawSize, r.Address)
		return nil, false
	}

	neighborhood := normaliseText(r.Neighborhood)
	if neighborhood != "" && !strings.Contains(address, neighborhood) {
		address = address + ", " + neighborhood
	}

	now := c.now()
	return &models.Listing{
		ID:               uuid.NewString(),
		Address:          address,
		City:             normaliseText(r.City),
		Neighborhood:     neighborhood,
		PropertyType:     determinePropertyType(r.PropertyType),
		Rooms:            rooms,
		Size:             size,
		Price:            price,
		Condition:        determineCondition(r.Condition),
		Parking:          parseBool(r.Parking),
		Elevator:         parseBool(r.Elevator),
		Balcony:          parseBool(r.Balcony),
		Garden:           parseBool(r.Garden),
		EvictionBuilding: parseBool(r.Eviction),
		SourceWebsite:    normaliseSource(r.Source),
		SourceURL:        strings.TrimSpace(r.URL),
		SourceID:         strings.TrimSpace(r.SourceID),
		ContactName:      normaliseText(r.ContactName),
		ContactPhone:     strings.TrimSpace(r.ContactPhone),
		ContactEmail:     strings.ToLower(strings.TrimSpace(r.ContactEmail)),
		Status:           models.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, true
}

// parsePrice extracts the first number, ignoring currency symbols and
// thousands separators.
// Examples:
//
//	"₪1,850,000" → 1850000
//	"2,400,000 ש״ח" → 2400000
func parsePrice(raw string) float64 {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRooms accepts fractional counts such as "4.5 חדרים".
func parseRooms(raw string) float64 {
	match := roomsRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return v
}

func parseSize(raw string) float64 {
	match := sizeRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		return 0
	}
	v, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return float64(v)
}

func determinePropertyType(raw string) string {
	t := strings.ToLower(raw)
	switch {
	case strings.Contains(t, "penthouse") || strings.Contains(t, "פנטהאוז") || strings.Contains(t, "נטהאוס"):
		return models.PropertyTypePenthouse
	case strings.Contains(t, "garden") || strings.Contains(t, "גן"):
		return models.PropertyTypeGardenApartment
	case strings.Contains(t, "house") || strings.Contains(t, "בית"):
		return models.PropertyTypeHouse
	case strings.Contains(t, "duplex") || strings.Contains(t, "דופלקס"):
		return models.PropertyTypeDuplex
	case strings.Contains(t, "land") || strings.Contains(t, "מגרש"):
		return models.PropertyTypeLand
	default:
		return models.PropertyTypeApartment
	}
}

func determineCondition(raw string) string {
	t := strings.ToLower(raw)
	switch {
	case strings.Contains(t, "חדש") || strings.Contains(t, "new"):
		return "new"
	case strings.Contains(t, "מצוין") || strings.Contains(t, "excellent"):
		return "excellent"
	case strings.Contains(t, "שיפוץ") || strings.Contains(t, "renovation"):
		return "needs_renovation"
	case strings.Contains(t, "סביר") || strings.Contains(t, "fair"):
		return "fair"
	default:
		return "good"
	}
}

func parseBool(raw string) bool {
	t := strings.ToLower(strings.TrimSpace(raw))
	return strings.Contains(t, "כן") || strings.Contains(t, "yes") || t == "true" || t == "1"
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func normaliseSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "other"
	}
	return s
}
