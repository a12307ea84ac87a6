package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
)

const maxTitleWidth = 48

// WriteProfiles prints profiles as an aligned table.
func WriteProfiles(w io.Writer, profiles []model.Profile) error {
	if len(profiles) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No profiles yet. Add one with: dealai profiles add"))
		return err
	}

	if _, err := fmt.Fprintln(w, FormatTitle(fmt.Sprintf("Profiles (%d)", len(profiles)))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKEYWORDS\tPRICE RANGE\tMIN SCORE\tCHAT")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%s\n",
			p.ID, p.Name, orDash(p.Keywords), FormatPriceRange(p), p.MinScore, orDash(p.ChatID))
	}
	return tw.Flush()
}

// WriteListings prints stored listings as an aligned table.
func WriteListings(w io.Writer, listings []model.Listing) error {
	if len(listings) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No listings match."))
		return err
	}

	if _, err := fmt.Fprintln(w, FormatTitle(fmt.Sprintf("Listings (%d)", len(listings)))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROFILE\tTITLE\tPRICE\tSCORE\tSECURITY\tSTATUS\tSEEN")
	for _, l := range listings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t£%s\t%.2f\t%d\t%s\t%s\n",
			l.ID, l.Profile, truncate(l.Title, maxTitleWidth), model.FormatCents(l.PriceCents),
			l.Score, l.SecurityScore, l.Status, l.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// WriteListingDetail prints one listing with its security badge.
func WriteListingDetail(w io.Writer, l *model.Listing) error {
	badge := model.Badge(l.SecurityScore)

	var b strings.Builder
	fmt.Fprintf(&b, "£%s • %s • score %.2f\n", model.FormatCents(l.PriceCents), l.Profile, l.Score)
	fmt.Fprintf(&b, "Security: %d/100 %s\n", l.SecurityScore, StyleBadge(l.SecurityScore, badge))
	fmt.Fprintf(&b, "Status: %s (model: %s)\n", l.Status, orDash(l.AIModel))
	if l.Reason != "" {
		fmt.Fprintf(&b, "Match: %s\n", l.Reason)
	}
	if l.AIReasons != "" {
		fmt.Fprintf(&b, "Evaluation: %s\n", l.AIReasons)
	}
	if l.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", l.Description)
	}
	fmt.Fprintf(&b, "\n%s", l.URL)

	_, err := fmt.Fprintln(w, RenderBox(l.Title, b.String()))
	return err
}

// WriteSummary prints the outcome of a pipeline run.
func WriteSummary(w io.Writer, s pipeline.Summary) error {
	body := fmt.Sprintf("  • Processed: %d\n", s.Processed) +
		fmt.Sprintf("  • Accepted: %d\n", s.Accepted) +
		fmt.Sprintf("  • Rejected: %d\n", s.Rejected) +
		fmt.Sprintf("  • Notifications sent: %d\n", s.Sent)
	if s.NotConfigured > 0 {
		body += "  " + FormatWarning(fmt.Sprintf("Not sent (no channel): %d", s.NotConfigured)) + "\n"
	}
	if s.Failed > 0 {
		body += "  " + FormatWarning(fmt.Sprintf("Failed to send: %d", s.Failed)) + "\n"
	}
	body += fmt.Sprintf("  • Time taken: %s", s.Duration.Round(time.Millisecond))

	_, err := fmt.Fprintln(w, RenderBox("Run Complete", body))
	return err
}

// FormatPriceRange renders the optional price bounds of a profile.
func FormatPriceRange(p model.Profile) string {
	switch {
	case p.PriceMinCents == nil && p.PriceMaxCents == nil:
		return "any"
	case p.PriceMaxCents == nil:
		return "≥ £" + model.FormatCents(*p.PriceMinCents)
	case p.PriceMinCents == nil:
		return "≤ £" + model.FormatCents(*p.PriceMaxCents)
	default:
		return "£" + model.FormatCents(*p.PriceMinCents) + " - £" + model.FormatCents(*p.PriceMaxCents)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
