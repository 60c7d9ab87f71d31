package models

import "time"

// Property types recognised by the cleaner.
const (
	PropertyTypeApartment       = "apartment"
	PropertyTypeHouse           = "house"
	PropertyTypePenthouse       = "penthouse"
	PropertyTypeGardenApartment = "garden_apartment"
	PropertyTypeDuplex          = "duplex"
	PropertyTypeLand            = "land"
)

// Listing lifecycle states.
const (
	StatusActive  = "active"
	StatusSold    = "sold"
	StatusRemoved = "removed"
	StatusPending = "pending"
)

// RawListing holds unprocessed feed data exactly as the upstream source
// returned it. This is written to CSV before any cleaning or transformation.
type RawListing struct {
	Source       string    `json:"source"`
	SourceID     string    `json:"source_id"`
	URL          string    `json:"url"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	Neighborhood string    `json:"neighborhood"`
	RawPrice     string    `json:"price"`
	RawRooms     string    `json:"rooms"`
	RawSize      string    `json:"size"`
	PropertyType string    `json:"property_type"`
	Condition    string    `json:"condition"`
	Parking      string    `json:"parking"`
	Elevator     string    `json:"elevator"`
	Balcony      string    `json:"balcony"`
	Garden       string    `json:"garden"`
	Eviction     string    `json:"eviction_building"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// Listing is the cleaned, validated property record. Score fields are set
// once at ingestion and never recomputed by the pipeline.
type Listing struct {
	ID           string `db:"id" bson:"_id" json:"id"`
	Address      string `db:"address" bson:"address" json:"address"`
	City         string `db:"city" bson:"city" json:"city"`
	Neighborhood string `db:"neighborhood" bson:"neighborhood" json:"neighborhood"`
	PropertyType string `db:"property_type" bson:"property_type" json:"propertyType"`

	Rooms               float64 `db:"rooms" bson:"rooms" json:"rooms"`
	Size                float64 `db:"size" bson:"size" json:"size"`
	Price               float64 `db:"price" bson:"price" json:"price"`
	PricePerSquareMeter float64 `db:"price_per_sqm" bson:"price_per_sqm" json:"pricePerSquareMeter"`
	Condition           string  `db:"condition" bson:"condition" json:"condition"`

	Parking          bool `db:"parking" bson:"parking" json:"parking"`
	Elevator         bool `db:"elevator" bson:"elevator" json:"elevator"`
	Balcony          bool `db:"balcony" bson:"balcony" json:"balcony"`
	Garden           bool `db:"garden" bson:"garden" json:"garden"`
	EvictionBuilding bool `db:"eviction_building" bson:"eviction_building" json:"evictionBuilding"`

	SourceWebsite string `db:"source_website" bson:"source_website" json:"sourceWebsite"`
	SourceURL     string `db:"source_url" bson:"source_url" json:"sourceUrl"`
	SourceID      string `db:"source_id" bson:"source_id" json:"sourceId"`

	IsHotDeal    bool `db:"is_hot_deal" bson:"is_hot_deal" json:"isHotDeal"`
	HotDealScore int  `db:"hot_deal_score" bson:"hot_deal_score" json:"hotDealScore"`

	ContactName  string `db:"contact_name" bson:"contact_name" json:"contactName,omitempty"`
	ContactPhone string `db:"contact_phone" bson:"contact_phone" json:"contactPhone,omitempty"`
	ContactEmail string `db:"contact_email" bson:"contact_email" json:"contactEmail,omitempty"`

	Status    string    `db:"status" bson:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" bson:"updated_at" json:"updatedAt"`
}

// DedupKey identifies a listing across repeated feed runs.
func (l *Listing) DedupKey() string {
	if l.SourceID != "" {
		return l.SourceWebsite + ":" + l.SourceID
	}
	return l.SourceWebsite + ":" + l.SourceURL
}

// InsightReport holds the computed overview over stored listings.
type InsightReport struct {
	TotalListings      int
	HotDeals           int
	AveragePrice       float64
	MinPrice           float64
	MaxPrice           float64
	AveragePricePerSqm float64
	CheapestPerSqm     *Listing
	TopHotDeals        []*Listing
	ListingsByCity     map[string]int
	ListingsBySource   map[string]int
}

// CityCount is one row of the top-cities aggregation.
type CityCount struct {
	City  string `db:"city" bson:"_id" json:"city"`
	Count int    `db:"count" bson:"count" json:"count"`
}
