package services_test

import (
	"context"
	"testing"

	"github.com/jackkerouac/aphrodite-sub000/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-7")
	ctx = services.WithItemID(ctx, "item-42")
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithSource(ctx, "omdb")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-7" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "item-42" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "render" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if source, ok := services.SourceFromContext(ctx); !ok || source != "omdb" {
		t.Fatalf("unexpected source: %v %v", source, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
}
