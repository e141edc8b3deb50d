package resolve

import (
	"fmt"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

// PrimaryAudio elects the primary audio stream and normalizes its codec to a
// badge symbol. Election order: default-flagged streams first, then highest
// channel count, then stream order. An empty symbol with ok=false means the
// codec could not be normalized; callers skip the badge rather than fail.
func PrimaryAudio(streams []catalog.MediaStream) (symbol, provenance string, ok bool) {
	primary, found := electPrimaryStream(streams)
	if !found {
		return "", "no audio streams", false
	}
	symbol = NormalizeCodec(primary)
	provenance = fmt.Sprintf("stream codec=%s profile=%s channels=%d default=%t",
		primary.Codec, primary.Profile, primary.Channels, primary.IsDefault)
	if symbol == "" {
		return "", provenance, false
	}
	return symbol, provenance, true
}

func electPrimaryStream(streams []catalog.MediaStream) (catalog.MediaStream, bool) {
	var candidates []catalog.MediaStream
	for _, stream := range streams {
		if stream.IsAudio() {
			candidates = append(candidates, stream)
		}
	}
	if len(candidates) == 0 {
		return catalog.MediaStream{}, false
	}

	// Default-flagged streams win outright; the remaining rules only break
	// ties inside the flagged (or, absent flags, the full) set.
	flagged := candidates[:0:0]
	for _, stream := range candidates {
		if stream.IsDefault {
			flagged = append(flagged, stream)
		}
	}
	if len(flagged) > 0 {
		candidates = flagged
	}

	best := candidates[0]
	for _, stream := range candidates[1:] {
		if stream.Channels > best.Channels {
			best = stream
		}
	}
	return best, true
}

// NormalizeCodec maps a stream's codec, profile, and title onto the badge
// symbol set. Atmos and DTS:X promote over their carrier codecs when the
// extension shows up in the profile or title text.
func NormalizeCodec(stream catalog.MediaStream) string {
	codec := strings.ToLower(strings.TrimSpace(stream.Codec))
	hints := strings.ToLower(strings.Join([]string{
		stream.Profile, stream.Title, stream.DisplayTitle,
	}, " "))

	if strings.Contains(hints, "atmos") {
		return CodecAtmos
	}
	if strings.Contains(hints, "dts:x") || strings.Contains(hints, "dts-x") || strings.Contains(hints, "dtsx") {
		return CodecDTSX
	}

	switch codec {
	case "truehd", "mlp":
		return CodecTrueHD
	case "dts":
		if strings.Contains(hints, "ma") || strings.Contains(hints, "master audio") {
			return CodecDTSHDMA
		}
		if strings.Contains(hints, "hd") || strings.Contains(hints, "hra") || strings.Contains(hints, "high resolution") {
			return CodecDTSHD
		}
		return CodecDTS
	case "eac3", "ec-3", "ec3", "ddp", "dd+":
		return CodecEAC3
	case "ac3", "ac-3", "dd":
		return CodecAC3
	case "aac", "he-aac":
		return CodecAAC
	case "flac":
		return CodecFLAC
	case "mp3", "mp2":
		return CodecMP3
	case "opus":
		return CodecOpus
	}
	if strings.HasPrefix(codec, "pcm") || codec == "lpcm" {
		return CodecPCM
	}
	return ""
}
