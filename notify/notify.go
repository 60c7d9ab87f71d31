// Package notify delivers hot-deal alerts to agents.
package notify

import (
	"context"
	"fmt"
	"strings"

	"realestate-leads/models"
	"realestate-leads/utils"
)

// Notifier announces a newly stored hot deal.
type Notifier interface {
	NotifyHotDeal(ctx context.Context, l *models.Listing) error
}

// LogNotifier writes alerts to the application log. It is used when no
// Telegram token is configured.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("notify")}
}

func (n *LogNotifier) NotifyHotDeal(_ context.Context, l *models.Listing) error {
	n.logger.Info("🔥 Hot deal %d/100: %s, %s ₪%.0f (%g rooms, %g m²) %s",
		l.HotDealScore, l.Address, l.City, l.Price, l.Rooms, l.Size, l.SourceURL)
	return nil
}

// FormatHotDeal renders l as a Telegram Markdown message.
func FormatHotDeal(l *models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 *Hot deal* (score %d/100)\n\n", l.HotDealScore)
	fmt.Fprintf(&b, "📍 %s, %s\n", escapeMarkdown(l.Address), escapeMarkdown(l.City))
	fmt.Fprintf(&b, "💰 ₪%.0f", l.Price)
	if l.PricePerSquareMeter > 0 {
		fmt.Fprintf(&b, " (₪%.0f/m²)", l.PricePerSquareMeter)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "🏠 %g rooms, %g m², %s\n", l.Rooms, l.Size, escapeMarkdown(l.PropertyType))
	if l.ContactPhone != "" {
		fmt.Fprintf(&b, "📞 %s\n", escapeMarkdown(l.ContactPhone))
	}
	if l.SourceURL != "" {
		fmt.Fprintf(&b, "\n[Open on %s](%s)", escapeMarkdown(l.SourceWebsite), l.SourceURL)
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Multi fans an alert out to several notifiers and reports the first error.
type Multi []Notifier

func (m Multi) NotifyHotDeal(ctx context.Context, l *models.Listing) error {
	var first error
	for _, n := range m {
		if err := n.NotifyHotDeal(ctx, l); err != nil && first == nil {
			first = err
		}
	}
	return first
}
