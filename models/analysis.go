package models

// ScoreResult is the hot-deal verdict stored on a listing at ingestion.
type ScoreResult struct {
	IsHotDeal    bool `json:"isHotDeal"`
	HotDealScore int  `json:"hotDealScore"`
}

// MarketAnalysis compares one listing against a caller-supplied cohort of
// comparable listings.
type MarketAnalysis struct {
	AveragePriceInArea     float64    `json:"averagePriceInArea"`
	PriceComparisonPercent int        `json:"priceComparison"`
	PotentialSavings       float64    `json:"potentialSavings"`
	IsGoodDeal             bool       `json:"isGoodDeal"`
	ComparableListings     []*Listing `json:"similarProperties"`
}
