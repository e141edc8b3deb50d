package posters

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

// Bucket identifies one of the three poster directories.
type Bucket string

const (
	BucketOriginal Bucket = "original"
	BucketWorking  Bucket = "working"
	BucketModified Bucket = "modified"
)

var buckets = []Bucket{BucketOriginal, BucketWorking, BucketModified}

// extensions is the probe order for reads. Writers pick the extension by
// sniffing the image bytes.
var extensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Store is a filesystem-backed poster repository rooted at a single
// directory with one subdirectory per bucket.
type Store struct {
	root string
}

// New creates the bucket directories under root and returns a Store.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("poster store root required")
	}
	for _, bucket := range buckets {
		if err := os.MkdirAll(filepath.Join(root, string(bucket)), 0o755); err != nil {
			return nil, services.Wrap(services.ErrStorageIO, "posters", "init", fmt.Sprintf("create %s bucket", bucket), err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// SaveOriginal writes the canonical backup for an item exactly once. When a
// concurrent writer or an earlier run already saved the original, the existing
// file wins and its path is returned. The write is atomic (tmp + link).
func (s *Store) SaveOriginal(itemID string, data []byte) (string, error) {
	if err := validateKey(itemID); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrImageInvalid, "posters", "save_original", "empty image payload", nil)
	}
	if existing, ok := s.find(itemID, BucketOriginal); ok {
		return existing, nil
	}

	target := s.path(itemID, BucketOriginal, sniffExtension(data))
	tmp, err := s.writeTemp(BucketOriginal, itemID, data)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	// Hard link fails when the target exists, so the first writer wins even
	// when two workers race on the same item.
	if err := os.Link(tmp, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return target, nil
		}
		if existing, ok := s.find(itemID, BucketOriginal); ok {
			return existing, nil
		}
		return "", services.Wrap(services.ErrStorageIO, "posters", "save_original", "link into original bucket", err)
	}
	return target, nil
}

// OriginalMatches reports whether the stored original is byte-identical to
// data. Used to avoid re-downloading posters on retry.
func (s *Store) OriginalMatches(itemID string, data []byte) bool {
	existing, _, err := s.Read(itemID, BucketOriginal)
	if err != nil {
		return false
	}
	return bytes.Equal(existing, data)
}

// WriteWorking stores a transient working copy, replacing any previous one.
func (s *Store) WriteWorking(itemID string, data []byte) (string, error) {
	return s.overwrite(itemID, BucketWorking, data, "write_working")
}

// SaveModified stores the badged poster, replacing any previous one.
func (s *Store) SaveModified(itemID string, data []byte) (string, error) {
	return s.overwrite(itemID, BucketModified, data, "save_modified")
}

// ReplaceOriginal swaps the stored original for an operator-chosen poster.
// Unlike SaveOriginal the new bytes always win; the caller owns making the
// catalog agree with the new base image.
func (s *Store) ReplaceOriginal(itemID string, data []byte) (string, error) {
	return s.overwrite(itemID, BucketOriginal, data, "replace_original")
}

func (s *Store) overwrite(itemID string, bucket Bucket, data []byte, op string) (string, error) {
	if err := validateKey(itemID); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrImageInvalid, "posters", op, "empty image payload", nil)
	}

	// Clear stale copies under other extensions before the rename so a PNG
	// replacing a JPEG does not leave both behind.
	s.removeAll(itemID, bucket)

	target := s.path(itemID, bucket, sniffExtension(data))
	tmp, err := s.writeTemp(bucket, itemID, data)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", services.Wrap(services.ErrStorageIO, "posters", op, "rename into bucket", err)
	}
	return target, nil
}

// Read returns the poster bytes and path for an item in the given bucket.
// A missing poster reports storage_io with fs.ErrNotExist in the chain.
func (s *Store) Read(itemID string, bucket Bucket) ([]byte, string, error) {
	if err := validateKey(itemID); err != nil {
		return nil, "", err
	}
	path, ok := s.find(itemID, bucket)
	if !ok {
		return nil, "", services.Wrap(services.ErrStorageIO, "posters", "read",
			fmt.Sprintf("no %s poster for item %s", bucket, itemID), fs.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", services.Wrap(services.ErrStorageIO, "posters", "read", path, err)
	}
	return data, path, nil
}

// Exists reports whether the item has a poster in the given bucket.
func (s *Store) Exists(itemID string, bucket Bucket) bool {
	if validateKey(itemID) != nil {
		return false
	}
	_, ok := s.find(itemID, bucket)
	return ok
}

// DeleteModified removes the badged poster for an item, if present.
func (s *Store) DeleteModified(itemID string) error {
	return s.delete(itemID, BucketModified)
}

// DeleteWorking removes the transient working copy for an item, if present.
func (s *Store) DeleteWorking(itemID string) error {
	return s.delete(itemID, BucketWorking)
}

func (s *Store) delete(itemID string, bucket Bucket) error {
	if err := validateKey(itemID); err != nil {
		return err
	}
	if err := s.removeAll(itemID, bucket); err != nil {
		return services.Wrap(services.ErrStorageIO, "posters", "delete", string(bucket), err)
	}
	return nil
}

// ListOriginals returns the item IDs that have an original on disk, sorted by
// directory order. Used by restore-all.
func (s *Store) ListOriginals() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(BucketOriginal)))
	if err != nil {
		return nil, services.Wrap(services.ErrStorageIO, "posters", "list_originals", "read original bucket", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !validExtension(ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	return ids, nil
}

// ContentHash returns the hex SHA-256 of the stored poster.
func (s *Store) ContentHash(itemID string, bucket Bucket) (string, error) {
	data, _, err := s.Read(itemID, bucket)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Store) path(itemID string, bucket Bucket, ext string) string {
	return filepath.Join(s.root, string(bucket), itemID+ext)
}

func (s *Store) find(itemID string, bucket Bucket) (string, bool) {
	for _, ext := range extensions {
		candidate := s.path(itemID, bucket, ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func (s *Store) removeAll(itemID string, bucket Bucket) error {
	var firstErr error
	for _, ext := range extensions {
		if err := os.Remove(s.path(itemID, bucket, ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Store) writeTemp(bucket Bucket, itemID string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.root, string(bucket)), "."+itemID+".tmp-*")
	if err != nil {
		return "", services.Wrap(services.ErrStorageIO, "posters", "write", "create temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrStorageIO, "posters", "write", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", services.Wrap(services.ErrStorageIO, "posters", "write", "close temp file", err)
	}
	return tmp.Name(), nil
}

func validateKey(itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return services.Wrap(services.ErrStorageIO, "posters", "key", "empty item id", nil)
	}
	if strings.ContainsAny(itemID, "/\\") || itemID == "." || itemID == ".." {
		return services.Wrap(services.ErrStorageIO, "posters", "key", fmt.Sprintf("unsafe item id %q", itemID), nil)
	}
	return nil
}

func validExtension(ext string) bool {
	for _, allowed := range extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// sniffExtension picks a file extension from the image's magic bytes,
// defaulting to .jpg for anything unrecognized.
func sniffExtension(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}):
		return ".png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return ".webp"
	default:
		return ".jpg"
	}
}

// ExtensionForMime maps an image content type onto the store's extension set.
func ExtensionForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
