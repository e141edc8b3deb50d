package resolve

import (
	"fmt"
	"sort"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

// episodeAttributes is the per-episode slice of a series election.
type episodeAttributes struct {
	Class ResolutionClass
	Codec string
	Range DynamicRange
}

// SampleEpisodes picks up to limit episode IDs spread across seasons: one per
// season round-robin until the budget is spent, so a long first season does
// not dominate the sample.
func SampleEpisodes(episodes []catalog.ItemSummary, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	bySeason := make(map[int][]string)
	var seasons []int
	for _, episode := range episodes {
		if _, seen := bySeason[episode.SeasonNumber]; !seen {
			seasons = append(seasons, episode.SeasonNumber)
		}
		bySeason[episode.SeasonNumber] = append(bySeason[episode.SeasonNumber], episode.ID)
	}
	sort.Ints(seasons)

	var picked []string
	for round := 0; len(picked) < limit; round++ {
		progressed := false
		for _, season := range seasons {
			ids := bySeason[season]
			if round >= len(ids) {
				continue
			}
			progressed = true
			picked = append(picked, ids[round])
			if len(picked) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return picked
}

// electSeries collapses sampled episode attributes into the series values:
// the mode per field, ties broken by the higher class / richer codec, and
// dynamic range OR-combined when hdrAny is set (else the mode's range).
func electSeries(samples []episodeAttributes, hdrAny bool) (ResolutionClass, string, DynamicRange, string) {
	if len(samples) == 0 {
		return "", "", RangeSDR, "no episodes sampled"
	}

	classVotes := make(map[ResolutionClass]int)
	codecVotes := make(map[string]int)
	flags := rangeFlags{}
	var modalRange DynamicRange = RangeSDR
	rangeVotes := make(map[DynamicRange]int)

	for _, sample := range samples {
		classVotes[sample.Class]++
		if sample.Codec != "" {
			codecVotes[sample.Codec]++
		}
		rangeVotes[sample.Range]++
		switch sample.Range {
		case RangeHDR:
			flags.HDR = true
		case RangeHDRPlus:
			flags.HDR, flags.HDRPlus = true, true
		case RangeDV:
			flags.DV = true
		case RangeDVHDR:
			flags.DV, flags.HDR = true, true
		case RangeDVHDRPlus:
			flags.DV, flags.HDR, flags.HDRPlus = true, true, true
		}
	}

	var class ResolutionClass
	best := -1
	for candidate, votes := range classVotes {
		if votes > best || (votes == best && candidate.Rank() > class.Rank()) {
			class, best = candidate, votes
		}
	}

	var codec string
	best = -1
	for candidate, votes := range codecVotes {
		if votes > best || (votes == best && CodecRank(candidate) > CodecRank(codec)) {
			codec, best = candidate, votes
		}
	}

	best = -1
	for candidate, votes := range rangeVotes {
		if votes > best {
			modalRange, best = candidate, votes
		}
	}

	dynamicRange := modalRange
	if hdrAny {
		dynamicRange = flags.Combine()
	}

	detail := fmt.Sprintf("elected from %d episodes: class=%s (%d votes) codec=%s",
		len(samples), class, classVotes[class], codec)
	return class, codec, dynamicRange, detail
}
