// Package browser scrapes listing cards from sites that render their search
// results client-side, driving headless Chrome through chromedp.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"realestate-leads/models"
	"realestate-leads/utils"
)

// Selectors are the CSS selectors for one site's search-result cards. Field
// selectors are evaluated inside each card.
type Selectors struct {
	Card         string `json:"card"`
	Price        string `json:"price"`
	Rooms        string `json:"rooms"`
	Size         string `json:"size"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Link         string `json:"link"`
	IDAttr       string `json:"idAttr"`
	Next         string `json:"next"`
}

// DefaultSelectors matches the card markup shared by WinWin and Madlan
// search pages.
func DefaultSelectors(card string) Selectors {
	return Selectors{
		Card:         card,
		Price:        ".price",
		Rooms:        ".rooms",
		Size:         ".size",
		Address:      ".address",
		City:         ".city",
		Neighborhood: ".neighborhood",
		Link:         "a",
		IDAttr:       "data-id",
		Next:         `a[aria-label="Next"], a[rel="next"], .pagination .next a`,
	}
}

// Options configures a Scraper.
type Options struct {
	Name        string
	StartURL    string
	Selectors   Selectors
	MaxPages    int
	MaxPerPage  int
	ChromeBin   string
	PageTimeout time.Duration
	RateLimitMs int
	MaxRetries  int
}

// Scraper is a scraper.Source over a browser-rendered search page.
type Scraper struct {
	opts   Options
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// card is the JSON shape returned by the extraction script.
type card struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Price        string `json:"price"`
	Rooms        string `json:"rooms"`
	Size         string `json:"size"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
}

// New creates a ready-to-use browser Scraper.
func New(opts Options, logger *utils.Logger) *Scraper {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.MaxPerPage <= 0 {
		opts.MaxPerPage = 50
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 90 * time.Second
	}
	logger = logger.With(opts.Name)
	return &Scraper{
		opts:   opts,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

func (s *Scraper) Name() string { return s.opts.Name }

// FetchCandidateListings walks up to MaxPages result pages starting at
// StartURL. Listings outside filter.Cities are dropped when cities are given.
func (s *Scraper) FetchCandidateListings(ctx context.Context, filter models.SearchFilter) ([]*models.RawListing, error) {
	chromeBin := s.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("Starting scrape of %s (up to %d pages, browser %q)", s.opts.StartURL, s.opts.MaxPages, chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var out []*models.RawListing
	seen := utils.NewKeySet()
	currentURL := s.opts.StartURL
	for page := 1; page <= s.opts.MaxPages; page++ {
		cards, nextURL, err := s.scrapePage(browserCtx, currentURL, page)
		if err != nil {
			if len(out) == 0 {
				return nil, fmt.Errorf("%s: page %d: %w", s.opts.Name, page, err)
			}
			s.logger.Error("Page %d failed, keeping %d listings: %v", page, len(out), err)
			break
		}
		if len(cards) == 0 {
			s.logger.Warn("Page %d returned 0 cards, stopping", page)
			break
		}

		out = append(out, s.toRaw(cards, filter, seen, time.Now())...)
		s.logger.Info("Page %d done, %d listings so far", page, len(out))

		if nextURL == "" {
			break
		}
		currentURL = nextURL

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(time.Duration(s.opts.RateLimitMs) * time.Millisecond):
		}
	}
	return out, nil
}

func (s *Scraper) scrapePage(browserCtx context.Context, pageURL string, pageNum int) ([]card, string, error) {
	script, err := extractScript(s.opts.Selectors, s.opts.MaxPerPage)
	if err != nil {
		return nil, "", err
	}

	var cards []card
	var nextURL string
	err = s.retry.Do(browserCtx, fmt.Sprintf("%s page %d", s.opts.Name, pageNum), func() error {
		tabCtx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.opts.PageTimeout)
		defer cancelTimeout()

		var result struct {
			Cards []card `json:"cards"`
			Next  string `json:"next"`
		}
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(script, &result),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}
		cards, nextURL = result.Cards, result.Next
		return nil
	})
	s.logger.Debug("Page %d: %d cards", pageNum, len(cards))
	return cards, nextURL, err
}

// toRaw converts cards to raw listings, skipping cards already in seen and
// cards whose city is outside filter.Cities. Kept cards are added to seen.
func (s *Scraper) toRaw(cards []card, filter models.SearchFilter, seen *utils.KeySet, now time.Time) []*models.RawListing {
	out := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		key := c.ID
		if key == "" {
			key = c.URL
		}
		if key == "" || seen.Contains(key) {
			continue
		}
		if len(filter.Cities) > 0 && !filter.Matches(&models.Listing{City: strings.TrimSpace(c.City)}) {
			continue
		}
		seen.Add(key)
		out = append(out, &models.RawListing{
			Source:       s.opts.Name,
			SourceID:     c.ID,
			URL:          c.URL,
			Address:      c.Address,
			City:         c.City,
			Neighborhood: c.Neighborhood,
			RawPrice:     c.Price,
			RawRooms:     c.Rooms,
			RawSize:      c.Size,
			ScrapedAt:    now,
		})
	}
	return out
}

// extractScript builds the in-page extraction function for sel.
func extractScript(sel Selectors, limit int) (string, error) {
	if strings.TrimSpace(sel.Card) == "" {
		return "", fmt.Errorf("browser: card selector is required")
	}
	cfg, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("browser: encode selectors: %w", err)
	}
	return fmt.Sprintf(`
		(function(sel, limit) {
			function text(root, q) {
				if (!q) return '';
				var el = root.querySelector(q);
				return el ? el.innerText.trim() : '';
			}
			var cards = document.querySelectorAll(sel.card);
			var out = [];
			for (var i = 0; i < cards.length && out.length < limit; i++) {
				var c = cards[i];
				var link = sel.link ? c.querySelector(sel.link) : null;
				out.push({
					id:           (sel.idAttr && c.getAttribute(sel.idAttr)) || '',
					url:          link && link.href ? link.href : '',
					price:        text(c, sel.price),
					rooms:        text(c, sel.rooms),
					size:         text(c, sel.size),
					address:      text(c, sel.address),
					city:         text(c, sel.city),
					neighborhood: text(c, sel.neighborhood)
				});
			}
			var next = sel.next ? document.querySelector(sel.next) : null;
			return {cards: out, next: next && next.href ? next.href : ''};
		})(%s, %d)
	`, cfg, limit), nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
