package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobtracker-backend/internal/applications"
	"jobtracker-backend/internal/shared/config"
	"jobtracker-backend/internal/shared/storage/object/memory"
	"jobtracker-backend/internal/users"
)

func TestBuildInMemory(t *testing.T) {
	app, err := Build(config.Config{
		Env:              "dev",
		ApplicationStore: "memory",
		ObjectStoreType:  "memory",
		MaxUploadBytes:   1 << 20,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close(context.Background())

	if _, ok := app.ApplicationsRepo.(*applications.MemoryRepo); !ok {
		t.Fatalf("expected memory applications repo, got %T", app.ApplicationsRepo)
	}
	if _, ok := app.UsersRepo.(*users.MemoryRepo); !ok {
		t.Fatalf("expected memory users repo, got %T", app.UsersRepo)
	}
	if _, ok := app.Store.(*memory.Store); !ok {
		t.Fatalf("expected memory object store, got %T", app.Store)
	}
	if app.Events != nil || app.StatsService.Cache != nil {
		t.Fatalf("events and cache should be off without configuration")
	}
	if app.ApplicationsService.OnChange == nil {
		t.Fatalf("stats invalidation must be wired")
	}
	if app.ApplicationsHandler.MaxUploadBytes != 1<<20 {
		t.Fatalf("upload limit not applied: %d", app.ApplicationsHandler.MaxUploadBytes)
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.Code)
	}
}

func TestBuildFallsBackToMemoryInDev(t *testing.T) {
	app, err := Build(config.Config{
		Env:              "dev",
		ApplicationStore: "postgres",
		ObjectStoreType:  "memory",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close(context.Background())
	if app.Config.ApplicationStore != "memory" {
		t.Fatalf("expected memory fallback, got %s", app.Config.ApplicationStore)
	}
}

func TestBuildRequiresDatabaseInProduction(t *testing.T) {
	_, err := Build(config.Config{
		Env:              "production",
		ApplicationStore: "postgres",
		ObjectStoreType:  "memory",
	})
	if err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildStoreRequiresBucket(t *testing.T) {
	for _, kind := range []string{"s3", "gcs"} {
		if _, err := buildStore(context.Background(), config.Config{ObjectStoreType: kind}); err == nil {
			t.Fatalf("%s: expected missing bucket error", kind)
		}
	}
}
