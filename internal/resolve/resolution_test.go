package resolve

import (
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/catalog"
)

func TestClassifyDimensions(t *testing.T) {
	cases := []struct {
		width, height int
		want          ResolutionClass
	}{
		{3840, 2160, Res4K},
		{3840, 1600, Res4K},    // letterboxed UHD
		{3700, 1556, Res4K},    // cropped UHD inside the near-miss band
		{3700, 1400, Res1080p}, // too short for the 4k band
		{1920, 1080, Res1080p},
		{1898, 1080, Res1080p}, // cropped width inside the 1080p band
		{1280, 720, Res720p},
		{1280, 536, Res720p}, // letterboxed 720p must not fall to 576p
		{1248, 520, Res720p},
		{1024, 576, Res576p},
		{720, 480, Res480p},
		{640, 360, Res480p},
	}
	for _, tc := range cases {
		if got := ClassifyDimensions(tc.width, tc.height); got != tc.want {
			t.Errorf("ClassifyDimensions(%d, %d) = %s, want %s", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestParseFilenameTokens(t *testing.T) {
	cases := []struct {
		path      string
		wantClass ResolutionClass
		wantFound bool
		wantRange DynamicRange
	}{
		{"/media/Movie.2023.2160p.HDR10.x265.mkv", Res4K, true, RangeHDR},
		{"/media/Movie.2023.UHD.DV.HDR10+.mkv", Res4K, true, RangeDVHDRPlus},
		{"/media/Show.S01E01.1080p.WEB-DL.mkv", Res1080p, true, RangeSDR},
		{"/media/Movie_720p_HLG.mp4", Res720p, true, RangeHDR},
		{"/media/Dolby.Vision.Feature.2160p.mkv", Res4K, true, RangeDV},
		{"/media/old-tape-480p.avi", Res480p, true, RangeSDR},
		{"/media/No Tokens Here.mkv", "", false, RangeSDR},
	}
	for _, tc := range cases {
		class, found, flags := ParseFilename(tc.path)
		if class != tc.wantClass || found != tc.wantFound {
			t.Errorf("ParseFilename(%q) class = %s found=%t, want %s found=%t",
				tc.path, class, found, tc.wantClass, tc.wantFound)
		}
		if got := flags.Combine(); got != tc.wantRange {
			t.Errorf("ParseFilename(%q) range = %s, want %s", tc.path, got, tc.wantRange)
		}
	}
}

func TestTechnicalAttributesCrossValidation(t *testing.T) {
	item := &catalog.ItemMetadata{
		ID:   "item-1",
		Type: "Movie",
		Path: "/media/Movie.2160p.mkv",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Codec: "hevc", Width: 1920, Height: 1080},
		},
	}

	cases := []struct {
		preference string
		want       ResolutionClass
	}{
		{PreferHigher, Res4K},
		{PreferFilename, Res4K},
		{PreferStream, Res1080p},
	}
	for _, tc := range cases {
		class, _, provenance := TechnicalAttributes(item, tc.preference)
		if class != tc.want {
			t.Errorf("preference %s: class = %s, want %s", tc.preference, class, tc.want)
		}
		if provenance["resolution_class"] == "" {
			t.Errorf("preference %s: missing provenance for disputed class", tc.preference)
		}
	}
}

func TestTechnicalAttributesDynamicRange(t *testing.T) {
	cases := []struct {
		name   string
		stream catalog.MediaStream
		path   string
		want   DynamicRange
	}{
		{
			name:   "hdr10 from color transfer",
			stream: catalog.MediaStream{Type: "Video", Width: 3840, Height: 2160, ColorTransfer: "smpte2084", ColorPrimaries: "bt2020"},
			want:   RangeHDR,
		},
		{
			name:   "hlg from color transfer",
			stream: catalog.MediaStream{Type: "Video", Width: 1920, Height: 1080, ColorTransfer: "arib-std-b67"},
			want:   RangeHDR,
		},
		{
			name:   "dv from codec tag",
			stream: catalog.MediaStream{Type: "Video", Width: 3840, Height: 2160, Codec: "dvhe"},
			want:   RangeDV,
		},
		{
			name:   "dv plus hdr10 combine",
			stream: catalog.MediaStream{Type: "Video", Width: 3840, Height: 2160, ColorTransfer: "smpte2084", VideoDoViTitle: "DV Profile 8.1"},
			want:   RangeDVHDR,
		},
		{
			name:   "hdr10plus from range type",
			stream: catalog.MediaStream{Type: "Video", Width: 3840, Height: 2160, VideoRangeType: "HDR10Plus"},
			want:   RangeHDRPlus,
		},
		{
			name:   "filename token only",
			stream: catalog.MediaStream{Type: "Video", Width: 3840, Height: 2160},
			path:   "/media/Movie.2160p.HDR.mkv",
			want:   RangeHDR,
		},
		{
			name:   "sdr default",
			stream: catalog.MediaStream{Type: "Video", Width: 1280, Height: 536},
			want:   RangeSDR,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := &catalog.ItemMetadata{ID: "x", Type: "Episode", Path: tc.path, MediaStreams: []catalog.MediaStream{tc.stream}}
			_, dynamicRange, _ := TechnicalAttributes(item, PreferHigher)
			if dynamicRange != tc.want {
				t.Fatalf("dynamic range = %s, want %s", dynamicRange, tc.want)
			}
		})
	}
}

func TestHDRMayAccompanySubUHD(t *testing.T) {
	item := &catalog.ItemMetadata{
		ID:   "x",
		Type: "Episode",
		MediaStreams: []catalog.MediaStream{
			{Type: "Video", Width: 1920, Height: 1080, ColorTransfer: "smpte2084"},
		},
	}
	class, dynamicRange, _ := TechnicalAttributes(item, PreferHigher)
	if class != Res1080p || dynamicRange != RangeHDR {
		t.Fatalf("got %s/%s, want 1080p/hdr", class, dynamicRange)
	}
}
