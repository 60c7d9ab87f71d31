package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"realestate-leads/models"
	"realestate-leads/scoring"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

const topHotDeals = 5

type InsightService struct {
	store  storage.PropertyStore
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(store storage.PropertyStore, logger *utils.Logger) *InsightService {
	return &InsightService{store: store, logger: logger.With("insights"), out: os.Stdout}
}

// Overview loads every stored listing and summarises the active ones.
func (s *InsightService) Overview(ctx context.Context) (*models.InsightReport, error) {
	all, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("insights: load listings: %w", err)
	}
	active := all[:0]
	for _, l := range all {
		if l.Status == models.StatusActive {
			active = append(active, l)
		}
	}
	s.logger.Debug("Generating report over %d active listings", len(active))
	return s.Generate(active), nil
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCity:   make(map[string]int),
		ListingsBySource: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priced []*models.Listing
	var hot []*models.Listing
	var perSqmTotal float64
	var perSqmCount int

	for _, l := range listings {
		if l.IsHotDeal {
			report.HotDeals++
			hot = append(hot, l)
		}
		if l.Price > 0 {
			priced = append(priced, l)
		}
		if ppa := scoring.PricePerArea(l); ppa > 0 {
			perSqmTotal += ppa
			perSqmCount++
			if report.CheapestPerSqm == nil || ppa < scoring.PricePerArea(report.CheapestPerSqm) {
				report.CheapestPerSqm = l
			}
		}
		if l.City != "" {
			report.ListingsByCity[l.City]++
		}
		if l.SourceWebsite != "" {
			report.ListingsBySource[l.SourceWebsite]++
		}
	}

	// Price stats (only listings with price > 0)
	if len(priced) > 0 {
		report.MinPrice = priced[0].Price
		report.MaxPrice = priced[0].Price
		var total float64
		for _, l := range priced {
			total += l.Price
			if l.Price < report.MinPrice {
				report.MinPrice = l.Price
			}
			if l.Price > report.MaxPrice {
				report.MaxPrice = l.Price
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
	}
	if perSqmCount > 0 {
		report.AveragePricePerSqm = round2(perSqmTotal / float64(perSqmCount))
	}

	scoring.Rank(hot)
	if len(hot) > topHotDeals {
		hot = hot[:topHotDeals]
	}
	report.TopHotDeals = hot

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 MARKET INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Active listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Hot deals       : \033[1;31m%d\033[0m\n", r.HotDeals)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Average price      : \033[1;32m₪%s\033[0m\n", thousands(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price      : \033[1;32m₪%s\033[0m\n", thousands(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price      : \033[1;32m₪%s\033[0m\n", thousands(r.MaxPrice))
		fmt.Fprintf(w, "  Average price / m² : \033[1;32m₪%s\033[0m\n", thousands(r.AveragePricePerSqm))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if c := r.CheapestPerSqm; c != nil {
		fmt.Fprintf(w, "\033[1;33m  Cheapest per m²\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(c.Address, 50))
		fmt.Fprintf(w, "  City  : %s\n", c.City)
		fmt.Fprintf(w, "  Price : \033[1;32m₪%s\033[0m (₪%s/m²)\n", thousands(c.Price), thousands(scoring.PricePerArea(c)))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top %d Hot Deals\033[0m\n", topHotDeals)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopHotDeals) == 0 {
		fmt.Fprintf(w, "  No hot deals found\n")
	} else {
		for i, l := range r.TopHotDeals {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-36s \033[1;31m%3d 🔥\033[0m ₪%s\n",
				i+1, truncate(l.Address+", "+l.City, 34), l.HotDealScore, thousands(l.Price))
		}
	}
	fmt.Fprintln(w)

	printCounts(w, "Listings by City", thin, r.ListingsByCity)
	printCounts(w, "Listings by Source", thin, r.ListingsBySource)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title, thin string, counts map[string]int) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}
	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, n := range counts {
		rows = append(rows, keyCount{k, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, kc := range rows {
		bar := strings.Repeat("█", kc.count)
		fmt.Fprintf(w, "  %-24s %s (%d)\n", truncate(kc.key, 22), bar, kc.count)
	}
	fmt.Fprintln(w)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// thousands formats a whole shekel amount as 1,234,567.
func thousands(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
