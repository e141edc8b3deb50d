// Package resolve derives badgeable attributes for a catalog item: the
// resolution class, dynamic range, primary audio codec, review scores, and
// award matches. Every derived field carries provenance describing where the
// value came from.
package resolve

import "github.com/jackkerouac/aphrodite-sub000/internal/enrich"

// ResolutionClass is the normalized display class of an item.
type ResolutionClass string

const (
	Res480p  ResolutionClass = "480p"
	Res576p  ResolutionClass = "576p"
	Res720p  ResolutionClass = "720p"
	Res1080p ResolutionClass = "1080p"
	Res4K    ResolutionClass = "4k"
)

// resolutionRank orders classes for "higher wins" comparisons.
var resolutionRank = map[ResolutionClass]int{
	Res480p:  1,
	Res576p:  2,
	Res720p:  3,
	Res1080p: 4,
	Res4K:    5,
}

// Rank returns the ordering position of the class; unknown classes rank lowest.
func (c ResolutionClass) Rank() int { return resolutionRank[c] }

// DynamicRange is the combined HDR/Dolby Vision classification.
type DynamicRange string

const (
	RangeSDR       DynamicRange = "sdr"
	RangeHDR       DynamicRange = "hdr"
	RangeHDRPlus   DynamicRange = "hdr_plus"
	RangeDV        DynamicRange = "dv"
	RangeDVHDR     DynamicRange = "dv_hdr"
	RangeDVHDRPlus DynamicRange = "dv_hdr_plus"
)

// IsHDR reports whether the range is anything above SDR.
func (d DynamicRange) IsHDR() bool { return d != RangeSDR && d != "" }

// Audio codec symbols, ordered by richness for series tie-breaks.
const (
	CodecAtmos   = "atmos"
	CodecDTSX    = "dts_x"
	CodecTrueHD  = "truehd"
	CodecDTSHDMA = "dtshdma"
	CodecDTSHD   = "dtshd"
	CodecDTS     = "dts"
	CodecEAC3    = "eac3"
	CodecAC3     = "ac3"
	CodecFLAC    = "flac"
	CodecAAC     = "aac"
	CodecOpus    = "opus"
	CodecMP3     = "mp3"
	CodecPCM     = "pcm"
)

var codecRank = map[string]int{
	CodecAtmos:   13,
	CodecDTSX:    12,
	CodecTrueHD:  11,
	CodecDTSHDMA: 10,
	CodecDTSHD:   9,
	CodecDTS:     8,
	CodecFLAC:    7,
	CodecPCM:     6,
	CodecEAC3:    5,
	CodecAC3:     4,
	CodecAAC:     3,
	CodecOpus:    2,
	CodecMP3:     1,
}

// CodecRank orders codec symbols by richness; unknown symbols rank lowest.
func CodecRank(symbol string) int { return codecRank[symbol] }

// ItemAttributes is the immutable result of one resolution pass.
type ItemAttributes struct {
	ResolutionClass   ResolutionClass
	DynamicRange      DynamicRange
	PrimaryAudioCodec string
	Reviews           []enrich.Review
	Awards            []string
	Provenance        map[string]string
}

// setProvenance records where a field's value came from.
func (a *ItemAttributes) setProvenance(field, source string) {
	if a.Provenance == nil {
		a.Provenance = make(map[string]string)
	}
	a.Provenance[field] = source
}
