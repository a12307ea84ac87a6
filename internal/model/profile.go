package model

import "strings"

// DefaultMinScore is the acceptance threshold assigned to new profiles.
const DefaultMinScore = 0.6

// Profile is a named set of matching rules a user wants monitored.
type Profile struct {
	PriceMinCents *int64  // Optional lower bound in minor currency units
	PriceMaxCents *int64  // Optional upper bound in minor currency units
	Name          string  // Unique display key
	Keywords      string  // Comma-delimited, case-insensitive substrings
	ChatID        string  // Optional notification target override
	ID            int64
	MinScore      float64 // Stored for forward-compatibility; not read by the decision logic
}

// KeywordList tokenizes the comma-delimited keyword rules into an ordered,
// lowercase set. Blank entries and repeats are dropped.
func (p Profile) KeywordList() []string {
	if strings.TrimSpace(p.Keywords) == "" {
		return nil
	}

	parts := strings.Split(p.Keywords, ",")
	keywords := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		kw := strings.ToLower(strings.TrimSpace(part))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	return keywords
}

// CountKeywordHits returns how many keywords occur in title, ignoring case.
func CountKeywordHits(title string, keywords []string) int {
	lowered := strings.ToLower(title)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			hits++
		}
	}
	return hits
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
