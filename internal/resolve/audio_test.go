package resolve

import (
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

func TestPrimaryAudioElection(t *testing.T) {
	t.Run("default flag wins over channel count", func(t *testing.T) {
		streams := []catalog.MediaStream{
			{Type: "Audio", Codec: "truehd", Channels: 8},
			{Type: "Audio", Codec: "ac3", Channels: 6, IsDefault: true},
		}
		symbol, _, ok := PrimaryAudio(streams)
		if !ok || symbol != CodecAC3 {
			t.Fatalf("got %q ok=%t, want ac3", symbol, ok)
		}
	})

	t.Run("channel count breaks default tie", func(t *testing.T) {
		streams := []catalog.MediaStream{
			{Type: "Audio", Codec: "ac3", Channels: 2, IsDefault: true},
			{Type: "Audio", Codec: "eac3", Channels: 6, IsDefault: true},
		}
		symbol, _, ok := PrimaryAudio(streams)
		if !ok || symbol != CodecEAC3 {
			t.Fatalf("got %q ok=%t, want eac3", symbol, ok)
		}
	})

	t.Run("stream order breaks full tie", func(t *testing.T) {
		streams := []catalog.MediaStream{
			{Type: "Audio", Codec: "aac", Channels: 2},
			{Type: "Audio", Codec: "mp3", Channels: 2},
		}
		symbol, _, ok := PrimaryAudio(streams)
		if !ok || symbol != CodecAAC {
			t.Fatalf("got %q ok=%t, want aac", symbol, ok)
		}
	})

	t.Run("non-audio streams ignored", func(t *testing.T) {
		streams := []catalog.MediaStream{
			{Type: "Video", Codec: "hevc", Width: 3840},
			{Type: "Subtitle", Codec: "srt"},
		}
		if _, _, ok := PrimaryAudio(streams); ok {
			t.Fatal("expected no primary audio")
		}
	})
}

func TestNormalizeCodec(t *testing.T) {
	cases := []struct {
		name   string
		stream catalog.MediaStream
		want   string
	}{
		{"atmos from title", catalog.MediaStream{Codec: "truehd", Title: "TrueHD Atmos 7.1"}, CodecAtmos},
		{"atmos from profile", catalog.MediaStream{Codec: "eac3", Profile: "Dolby Digital Plus + Dolby Atmos"}, CodecAtmos},
		{"dts-x from display title", catalog.MediaStream{Codec: "dts", DisplayTitle: "DTS:X 7.1"}, CodecDTSX},
		{"dts-hd ma from profile", catalog.MediaStream{Codec: "dts", Profile: "DTS-HD MA"}, CodecDTSHDMA},
		{"dts-hd hra", catalog.MediaStream{Codec: "dts", Profile: "DTS-HD HRA"}, CodecDTSHD},
		{"plain dts", catalog.MediaStream{Codec: "dts"}, CodecDTS},
		{"truehd", catalog.MediaStream{Codec: "truehd"}, CodecTrueHD},
		{"eac3", catalog.MediaStream{Codec: "eac3"}, CodecEAC3},
		{"ac3", catalog.MediaStream{Codec: "ac3"}, CodecAC3},
		{"aac", catalog.MediaStream{Codec: "aac"}, CodecAAC},
		{"flac", catalog.MediaStream{Codec: "flac"}, CodecFLAC},
		{"opus", catalog.MediaStream{Codec: "opus"}, CodecOpus},
		{"pcm variants", catalog.MediaStream{Codec: "pcm_s24le"}, CodecPCM},
		{"unknown codec", catalog.MediaStream{Codec: "cook"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCodec(tc.stream); got != tc.want {
				t.Fatalf("NormalizeCodec = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUnknownCodecSkipsNotFails(t *testing.T) {
	streams := []catalog.MediaStream{
		{Type: "Audio", Codec: "cook", Channels: 2, IsDefault: true},
	}
	symbol, provenance, ok := PrimaryAudio(streams)
	if ok || symbol != "" {
		t.Fatalf("unknown codec must not normalize, got %q", symbol)
	}
	if provenance == "" {
		t.Fatal("expected provenance describing the unnormalizable stream")
	}
}
