package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gabriel/anime-watchlist/backend/internal/models"
)

func TestProfilesListIncludesSeededDefault(t *testing.T) {
	_, app := setupTestApp(t, &stubResolver{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/profiles", nil), -1)
	if err != nil {
		t.Fatalf("list profiles failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Items []models.Profile `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode profiles: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Key != "default" {
		t.Fatalf("expected the seeded default profile, got %+v", body.Items)
	}
}

func TestProfilesCreate(t *testing.T) {
	_, app := setupTestApp(t, &stubResolver{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/v1/profiles",
		map[string]any{"key": "alex", "name": "Alex"}), -1)
	if err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if created.Key != "alex" || created.Name != "Alex" {
		t.Fatalf("unexpected profile: %+v", created)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/v1/profiles",
		map[string]any{"key": "alex", "name": "Someone Else"}), -1)
	if err != nil {
		t.Fatalf("duplicate create failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate key status = %d, want 409", resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/v1/profiles",
		map[string]any{"key": "", "name": "Nameless"}), -1)
	if err != nil {
		t.Fatalf("invalid create failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank key status = %d, want 400", resp.StatusCode)
	}
}

func TestLibraryIsolatedPerProfile(t *testing.T) {
	_, app := setupTestApp(t, &stubResolver{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/v1/profiles",
		map[string]any{"key": "second", "name": "Second"}), -1)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create profile failed: %v (status %d)", err, resp.StatusCode)
	}

	createEntry(t, app, map[string]any{"title": "Default Profile Show", "status": "watched"})

	req := jsonRequest(t, http.MethodGet, "/v1/library", nil)
	req.Header.Set("X-Profile-Key", "second")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var body struct {
		Items []models.LibraryEntry `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Items) != 0 {
		t.Fatalf("second profile should see an empty library, got %+v", body.Items)
	}
}

func TestProfileSelectedByQueryParam(t *testing.T) {
	_, app := setupTestApp(t, &stubResolver{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/v1/profiles",
		map[string]any{"key": "second", "name": "Second"}), -1)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create profile failed: %v (status %d)", err, resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/v1/library?profile=second",
		map[string]any{"title": "Second Profile Show", "status": "watched"}), -1)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create entry failed: %v (status %d)", err, resp.StatusCode)
	}

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/v1/library?profile=second", nil), -1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var body struct {
		Items []models.LibraryEntry `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Title != "Second Profile Show" {
		t.Fatalf("query-selected profile should see its own entry, got %+v", body.Items)
	}

	// The default profile never sees entries created under another profile.
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/v1/library", nil), -1)
	if err != nil {
		t.Fatalf("default list failed: %v", err)
	}
	body.Items = nil
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode default list: %v", err)
	}
	if len(body.Items) != 0 {
		t.Fatalf("default profile should be empty, got %+v", body.Items)
	}
}

func TestProfileSelectorRejectsUnknownValue(t *testing.T) {
	_, app := setupTestApp(t, &stubResolver{})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/v1/library?profile=nosuch", nil), -1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown profile query status = %d, want 400", resp.StatusCode)
	}

	req := jsonRequest(t, http.MethodGet, "/v1/library", nil)
	req.Header.Set("X-Profile-ID", "9999")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown profile id status = %d, want 400", resp.StatusCode)
	}
}
