package enrich

import "testing"

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Aharen-san wa Hakarenai", "Aharen-san wa Hakarenai"},
		{"Aharen-san wa Hakarenai Season 2", "Aharen-san wa Hakarenai"},
		{"Mob Psycho 100 (2016)", "Mob Psycho 100"},
		{"Attack on Titan - Part 2", "Attack on Titan"},
		{"Re:ZERO 2nd Season", "Re:ZERO"},
		{"Vinland Saga S2", "Vinland Saga"},
		{"Spice and Wolf Vol. 3", "Spice and Wolf"},
		{"Frieren Season 1 Part 2", "Frieren"},
	}
	for _, tc := range cases {
		if got := CleanTitle(tc.in); got != tc.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	if NormalizeTitle("SPY x FAMILY!") != "spy x family" {
		t.Errorf("unexpected normalization: %q", NormalizeTitle("SPY x FAMILY!"))
	}
	if NormalizeTitle("Re:ZERO -Starting Life-") != "re zero starting life" {
		t.Errorf("unexpected normalization: %q", NormalizeTitle("Re:ZERO -Starting Life-"))
	}
}

func TestTitleVariantsIncludeOriginalAndArticleDrop(t *testing.T) {
	variants := TitleVariants("The Apothecary Diaries", "Kusuriya no Hitorigoto")
	seen := map[string]bool{}
	for _, variant := range variants {
		seen[NormalizeTitle(variant)] = true
	}
	if !seen["the apothecary diaries"] {
		t.Error("missing as-is variant")
	}
	if !seen["kusuriya no hitorigoto"] {
		t.Error("missing original-title variant")
	}
	if !seen["apothecary diaries"] {
		t.Error("missing article-dropped variant")
	}
}
