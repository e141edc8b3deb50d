// Package render rasterizes badge instances and composites them onto poster
// images. Given identical inputs and styles the output bytes are stable.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// FontManager loads TTF/OTF fonts by name from the configured search paths
// and caches faces keyed by (path, size). The fallback chain is requested
// font, configured fallback, embedded default.
type FontManager struct {
	searchPaths []string
	fallback    string

	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	path string
	size float64
}

const embeddedFontKey = "embedded:goregular"

// NewFontManager creates a manager over the given search paths. fallback
// names the font tried when a requested font is missing; it may be empty.
func NewFontManager(searchPaths []string, fallback string) *FontManager {
	return &FontManager{
		searchPaths: searchPaths,
		fallback:    fallback,
		fonts:       make(map[string]*opentype.Font),
		faces:       make(map[faceKey]font.Face),
	}
}

// Face returns a cached face for the font name at the given size, walking the
// fallback chain when the name cannot be resolved.
func (m *FontManager) Face(name string, size float64) (font.Face, error) {
	if size <= 0 {
		size = 24
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, candidate := range []string{name, m.fallback} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		path, ok := m.resolve(candidate)
		if !ok {
			continue
		}
		if face, err := m.faceLocked(path, size); err == nil {
			return face, nil
		}
	}
	return m.faceLocked(embeddedFontKey, size)
}

// resolve maps a font name to a file under the search paths. Absolute paths
// pass through when they exist.
func (m *FontManager) resolve(name string) (string, bool) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return name, true
		}
		return "", false
	}
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = append(candidates, name+".ttf", name+".otf")
	}
	for _, dir := range m.searchPaths {
		for _, candidate := range candidates {
			path := filepath.Join(dir, candidate)
			if fileExists(path) {
				return path, true
			}
		}
	}
	return "", false
}

// faceLocked returns a cached face, parsing and caching the font on first
// use. Callers hold m.mu.
func (m *FontManager) faceLocked(path string, size float64) (font.Face, error) {
	key := faceKey{path: path, size: size}
	if face, ok := m.faces[key]; ok {
		return face, nil
	}

	parsed, ok := m.fonts[path]
	if !ok {
		data := goregular.TTF
		if path != embeddedFontKey {
			var err error
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, services.Wrap(services.ErrStorageIO, "render", "load_font", path, err)
			}
		}
		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			return nil, services.Wrap(services.ErrConfigInvalid, "render", "parse_font",
				fmt.Sprintf("%s is not a usable font", path), err)
		}
		m.fonts[path] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfigInvalid, "render", "new_face", path, err)
	}
	m.faces[key] = face
	return face, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
