package resolve

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

// Resolution preference values for cross-validation when the filename and the
// stream dimensions disagree.
const (
	PreferHigher   = "higher"
	PreferFilename = "filename"
	PreferStream   = "stream"
)

// ClassifyDimensions maps stream dimensions onto a resolution class. Width is
// primary: letterboxed encodes depress height, so height only participates in
// the near-miss bands.
func ClassifyDimensions(width, height int) ResolutionClass {
	switch {
	case width >= 3840:
		return Res4K
	case width >= 3600 && height >= 1500:
		return Res4K
	case width >= 1920:
		return Res1080p
	case width >= 1800 && height >= 800:
		return Res1080p
	case width >= 1280:
		return Res720p
	case width >= 1200 && height >= 400:
		return Res720p
	case width >= 960:
		return Res576p
	default:
		return Res480p
	}
}

// rangeFlags accumulates dynamic-range evidence from filename tokens and
// stream color metadata; the flags OR together across sources.
type rangeFlags struct {
	HDR     bool
	HDRPlus bool
	DV      bool
}

func (f rangeFlags) merge(other rangeFlags) rangeFlags {
	return rangeFlags{
		HDR:     f.HDR || other.HDR,
		HDRPlus: f.HDRPlus || other.HDRPlus,
		DV:      f.DV || other.DV,
	}
}

// Combine collapses the flags into the single dynamic-range value.
func (f rangeFlags) Combine() DynamicRange {
	switch {
	case f.DV && f.HDRPlus:
		return RangeDVHDRPlus
	case f.DV && f.HDR:
		return RangeDVHDR
	case f.DV:
		return RangeDV
	case f.HDRPlus:
		return RangeHDRPlus
	case f.HDR:
		return RangeHDR
	default:
		return RangeSDR
	}
}

var (
	res4KToken    = regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)
	res1080pToken = regexp.MustCompile(`(?i)\b1080[pi]\b`)
	res720pToken  = regexp.MustCompile(`(?i)\b720p\b`)
	res576pToken  = regexp.MustCompile(`(?i)\b576[pi]\b`)
	res480pToken  = regexp.MustCompile(`(?i)\b480[pi]\b`)

	hdrPlusToken = regexp.MustCompile(`(?i)\bhdr10\+|\bhdr10plus\b`)
	hdrToken     = regexp.MustCompile(`(?i)\b(hdr10|hdr|hlg)\b`)
	dvToken      = regexp.MustCompile(`(?i)\b(dv|dovi|dvhe|dvh1)\b|dolby[ ._-]?vision`)
)

// ParseFilename extracts resolution and dynamic-range tokens from a media
// path. Token separators (dots, underscores) are normalized to spaces so word
// boundaries match release-style names.
func ParseFilename(path string) (ResolutionClass, bool, rangeFlags) {
	name := strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(filepath.Base(path))

	var class ResolutionClass
	var found bool
	switch {
	case res4KToken.MatchString(name):
		class, found = Res4K, true
	case res1080pToken.MatchString(name):
		class, found = Res1080p, true
	case res720pToken.MatchString(name):
		class, found = Res720p, true
	case res576pToken.MatchString(name):
		class, found = Res576p, true
	case res480pToken.MatchString(name):
		class, found = Res480p, true
	}

	flags := rangeFlags{}
	if hdrPlusToken.MatchString(name) {
		flags.HDRPlus = true
	} else if hdrToken.MatchString(name) {
		flags.HDR = true
	}
	if dvToken.MatchString(name) {
		flags.DV = true
	}
	return class, found, flags
}

// streamRangeFlags reads dynamic-range evidence out of the video stream's
// color metadata and DV tags.
func streamRangeFlags(stream catalog.MediaStream) rangeFlags {
	flags := rangeFlags{}

	transfer := strings.ToLower(stream.ColorTransfer)
	primaries := strings.ToLower(stream.ColorPrimaries)
	if transfer == "smpte2084" || transfer == "arib-std-b67" {
		flags.HDR = true
	} else if strings.Contains(primaries, "bt2020") && strings.Contains(strings.ToLower(stream.VideoRange), "hdr") {
		flags.HDR = true
	}

	rangeType := strings.ToLower(stream.VideoRangeType)
	if strings.Contains(rangeType, "hdr10plus") || strings.Contains(rangeType, "hdr10+") {
		flags.HDRPlus = true
		flags.HDR = true
	}
	if strings.Contains(rangeType, "dovi") || strings.Contains(rangeType, "dv") {
		flags.DV = true
	}

	codec := strings.ToLower(stream.Codec)
	if codec == "dvhe" || codec == "dvh1" || strings.TrimSpace(stream.VideoDoViTitle) != "" {
		flags.DV = true
	}
	return flags
}

// TechnicalAttributes derives resolution class and dynamic range for a single
// item from its video stream and filename, applying the configured preference
// when the two disagree. Provenance records both candidates.
func TechnicalAttributes(item *catalog.ItemMetadata, preference string) (ResolutionClass, DynamicRange, map[string]string) {
	provenance := make(map[string]string)

	var video catalog.MediaStream
	var haveVideo bool
	for _, stream := range item.MediaStreams {
		if stream.IsVideo() {
			video = stream
			haveVideo = true
			break
		}
	}

	fileClass, fileFound, fileFlags := ParseFilename(item.Path)

	var class ResolutionClass
	switch {
	case haveVideo && fileFound:
		streamClass := ClassifyDimensions(video.Width, video.Height)
		class = chooseClass(streamClass, fileClass, preference)
		provenance["resolution_class"] = fmt.Sprintf("stream=%s (%dx%d) filename=%s chosen=%s",
			streamClass, video.Width, video.Height, fileClass, class)
	case haveVideo:
		class = ClassifyDimensions(video.Width, video.Height)
		provenance["resolution_class"] = fmt.Sprintf("stream %dx%d", video.Width, video.Height)
	case fileFound:
		class = fileClass
		provenance["resolution_class"] = "filename token"
	default:
		class = Res480p
		provenance["resolution_class"] = "no evidence, floor class"
	}

	flags := fileFlags
	if haveVideo {
		flags = flags.merge(streamRangeFlags(video))
	}
	dynamicRange := flags.Combine()
	provenance["dynamic_range"] = fmt.Sprintf("filename=%+v stream_color=%s/%s range_type=%s",
		fileFlags, video.ColorTransfer, video.ColorPrimaries, video.VideoRangeType)

	return class, dynamicRange, provenance
}

func chooseClass(streamClass, fileClass ResolutionClass, preference string) ResolutionClass {
	if streamClass == fileClass {
		return streamClass
	}
	switch preference {
	case PreferFilename:
		return fileClass
	case PreferStream:
		return streamClass
	default:
		if fileClass.Rank() > streamClass.Rank() {
			return fileClass
		}
		return streamClass
	}
}
