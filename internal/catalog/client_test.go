package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

func testConfig(url string) config.Catalog {
	return config.Catalog{
		URL:            url,
		APIKey:         "test-key",
		UserID:         "user-1",
		Tag:            "aphrodite-overlay",
		PageSize:       2,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		MaxInFlight:    4,
		TimeoutSeconds: 5,
		MaxImageMB:     1,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, server
}

func TestGetItemSendsTokenAndToleratesUnknownFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "test-key" {
			t.Errorf("missing auth token header")
		}
		if r.URL.Path != "/Users/user-1/Items/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{
            "Id": "abc",
            "Name": "The Matrix",
            "Type": "Movie",
            "ProductionYear": 1999,
            "Genres": ["Action", "Sci-Fi"],
            "ProviderIds": {"Imdb": "tt0133093", "Tmdb": "603"},
            "MediaStreams": [
                {"Type": "Video", "Width": 3840, "Height": 2160, "ColorTransfer": "smpte2084"},
                {"Type": "Audio", "Codec": "truehd", "Profile": "TrueHD+Atmos", "Channels": 8, "IsDefault": true}
            ],
            "SomeFutureField": {"nested": true}
        }`)
	}))

	item, err := client.GetItem(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Kind() != KindMovie {
		t.Fatalf("expected movie kind, got %s", item.Kind())
	}
	if id, ok := item.ProviderID("imdb"); !ok || id != "tt0133093" {
		t.Fatalf("ProviderID lookup failed: %q %v", id, ok)
	}
	if len(item.MediaStreams) != 2 || !item.MediaStreams[1].IsAudio() {
		t.Fatalf("unexpected streams %+v", item.MediaStreams)
	}
}

func TestItemPagerCursorAndRestart(t *testing.T) {
	items := []ItemSummary{
		{ID: "a", Type: "Movie"}, {ID: "b", Type: "Movie"},
		{ID: "c", Type: "Movie"}, {ID: "d", Type: "Movie"},
		{ID: "e", Type: "Movie"},
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("Limit"))
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := []ItemSummary{}
		if start < len(items) {
			page = items[start:end]
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Items":            page,
			"TotalRecordCount": len(items),
		})
	}))

	ctx := context.Background()
	pager := client.Items("lib-1", ListOptions{Recursive: true})
	var collected []string
	for {
		page, more, err := pager.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		for _, item := range page {
			collected = append(collected, item.ID)
		}
		if !more || len(page) == 0 {
			break
		}
	}
	if len(collected) != 5 {
		t.Fatalf("expected 5 items, got %v", collected)
	}

	// Resume from a stored cursor.
	resumed := client.Items("lib-1", ListOptions{Recursive: true, StartIndex: 4})
	page, _, err := resumed.Next(ctx)
	if err != nil {
		t.Fatalf("resumed Next: %v", err)
	}
	if len(page) != 1 || page[0].ID != "e" {
		t.Fatalf("expected final page [e], got %+v", page)
	}
}

func TestGetPrimaryImageSizeCap(t *testing.T) {
	big := make([]byte, 2*1024*1024)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(big)
	}))

	_, _, err := client.GetPrimaryImage(context.Background(), "abc")
	if !errors.Is(err, services.ErrImageTooLarge) {
		t.Fatalf("expected image_too_large, got %v", err)
	}
}

func TestSetPrimaryImageEncodesBase64(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	var received []byte
	var contentType string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		received, _ = base64.StdEncoding.DecodeString(string(body))
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.SetPrimaryImage(context.Background(), "abc", raw, "image/jpeg"); err != nil {
		t.Fatalf("SetPrimaryImage: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Fatalf("expected image content type, got %q", contentType)
	}
	if string(received) != string(raw) {
		t.Fatal("uploaded bytes did not round-trip through base64")
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrCatalogUnauthorized},
		{http.StatusForbidden, services.ErrCatalogUnauthorized},
		{http.StatusNotFound, services.ErrCatalogNotFound},
		{http.StatusBadRequest, services.ErrCatalogInvalidResponse},
		{http.StatusInternalServerError, services.ErrCatalogUnreachable},
	}
	for _, tc := range cases {
		status := tc.status
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := client.GetItem(context.Background(), "abc")
		if !errors.Is(err, tc.marker) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetItem(context.Background(), "abc")
	if !errors.Is(err, services.ErrCatalogRateLimited) {
		t.Fatalf("expected catalog_rate_limited, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("429 must classify as retryable")
	}
	delay, ok := services.RetryAfter(err)
	if !ok || delay != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %v ok=%v", delay, ok)
	}
}

func TestAddTagIsSetMembership(t *testing.T) {
	var updates int
	item := map[string]any{
		"Id":   "abc",
		"Name": "The Matrix",
		"Type": "Movie",
		"Tags": []string{"existing"},
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(item)
		case http.MethodPost:
			updates++
			var body struct {
				Tags []string `json:"Tags"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			item["Tags"] = body.Tags
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	ctx := context.Background()
	if err := client.AddTag(ctx, "abc", "aphrodite-overlay"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if updates != 1 {
		t.Fatalf("expected 1 update, got %d", updates)
	}
	// Second add is a no-op: the tag is already present.
	if err := client.AddTag(ctx, "abc", "aphrodite-overlay"); err != nil {
		t.Fatalf("AddTag repeat: %v", err)
	}
	if updates != 1 {
		t.Fatalf("idempotent add still posted an update, count=%d", updates)
	}

	if err := client.RemoveTag(ctx, "abc", "aphrodite-overlay"); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	if updates != 2 {
		t.Fatalf("expected 2 updates after removal, got %d", updates)
	}
	tags := item["Tags"].([]string)
	if len(tags) != 1 || tags[0] != "existing" {
		t.Fatalf("unexpected tags after removal: %v", tags)
	}
}
