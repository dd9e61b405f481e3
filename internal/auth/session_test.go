package auth

import (
	"strings"
	"testing"
	"time"
)

// Force the file fallback into a scratch home so tests never touch the
// real keyring or session directory.
func setupStorage(t *testing.T) {
	t.Helper()
	t.Setenv("CI", "1")
	t.Setenv("HOME", t.TempDir())
	useFile := true
	fileBasedStorageCache = &useFile
}

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	setupStorage(t)

	session := &Session{
		Name: "ra-login",
		URL:  "https://example.com",
		Cookies: []Cookie{
			{Name: "sid", Value: "abc123", Domain: "example.com", Path: "/"},
		},
		Headers:   map[string]string{"X-Custom": "1"},
		CreatedAt: time.Now(),
	}
	if err := Save(session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("ra-login")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.URL != session.URL {
		t.Errorf("url = %q", loaded.URL)
	}
	if len(loaded.Cookies) != 1 || loaded.Cookies[0].Value != "abc123" {
		t.Errorf("cookies = %+v", loaded.Cookies)
	}
	if loaded.Headers["X-Custom"] != "1" {
		t.Errorf("headers = %v", loaded.Headers)
	}
}

func TestSession_LoadExpired(t *testing.T) {
	setupStorage(t)

	session := &Session{
		Name:      "stale",
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := Save(session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := Load("stale"); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry error, got %v", err)
	}
}

func TestSession_Delete(t *testing.T) {
	setupStorage(t)

	if err := Save(&Session{Name: "gone", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := Load("gone"); err == nil {
		t.Error("expected error loading a deleted session")
	}

	// Deleting a missing session is not an error on the file backend
	if err := Delete("gone"); err != nil {
		t.Errorf("repeat Delete failed: %v", err)
	}
}

func TestSession_EmptyNameRejected(t *testing.T) {
	setupStorage(t)

	if err := Save(&Session{}); err == nil {
		t.Error("expected error saving a nameless session")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error loading an empty name")
	}
	if err := Delete(""); err == nil {
		t.Error("expected error deleting an empty name")
	}
}
