package enrich

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	yearMarkerRE   = regexp.MustCompile(`\s*[(\[]\d{4}[)\]]\s*`)
	seasonMarkerRE = regexp.MustCompile(`(?i)\s*[-:]?\s*(season\s*\d+|\d+(st|nd|rd|th)\s+season|s\d{1,2})\s*$`)
	partMarkerRE   = regexp.MustCompile(`(?i)\s*[-:]?\s*(part|cour|vol\.?|volume)\s*\d+\s*$`)
	spacesRE       = regexp.MustCompile(`\s{2,}`)
)

// CleanTitle strips year, season, part, and volume markers so a title can be
// used as a search query against sources that index base titles only.
func CleanTitle(title string) string {
	cleaned := yearMarkerRE.ReplaceAllString(title, " ")
	// Markers stack ("Show Season 2 Part 1"); strip until stable.
	for {
		next := seasonMarkerRE.ReplaceAllString(cleaned, "")
		next = partMarkerRE.ReplaceAllString(next, "")
		if next == cleaned {
			break
		}
		cleaned = next
	}
	cleaned = spacesRE.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(cleaned), "-:"))
}

// NormalizeTitle lowercases and collapses a title for matching.
func NormalizeTitle(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

var titleCaser = cases.Title(language.English)

// TitleVariants generates the candidate strings used for dataset matching:
// the title as-is, cleaned, normalized, title-cased, and the original title
// when it differs.
func TitleVariants(title, original string) []string {
	seen := make(map[string]struct{})
	var variants []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		key := NormalizeTitle(candidate)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
	}

	add(title)
	add(CleanTitle(title))
	add(titleCaser.String(strings.ToLower(CleanTitle(title))))
	if original != "" && !strings.EqualFold(original, title) {
		add(original)
		add(CleanTitle(original))
	}
	// A leading-article variant catches datasets that drop "The".
	for _, article := range []string{"the ", "a ", "an "} {
		lowered := strings.ToLower(title)
		if strings.HasPrefix(lowered, article) {
			add(title[len(article):])
		}
	}
	return variants
}
