package logger

import (
	"strings"
	"testing"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", "prod", "test", ""} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		log.Sync()
	}
}

func TestSanitizeValueRedactsSensitiveKeys(t *testing.T) {
	cases := []struct {
		key string
		val any
	}{
		{"token", "abc123"},
		{"refresh_token", "abc123"},
		{"authorization", "Bearer x"},
		{"password", "hunter2"},
		{"api_key", "sk-live"},
		{"email", "student@example.com"},
		{"system_prompt", "You are a patient algebra tutor."},
	}
	for _, tc := range cases {
		if got := sanitizeValue(tc.key, tc.val); got != "[REDACTED]" {
			t.Fatalf("sanitizeValue(%q): want [REDACTED], got %v", tc.key, got)
		}
	}
}

func TestSanitizeValuePassesOrdinaryKeys(t *testing.T) {
	if got := sanitizeValue("chat_id", "b1f0"); got != "b1f0" {
		t.Fatalf("chat_id should pass through, got %v", got)
	}
	if got := sanitizeValue("component", "TurnController"); got != "TurnController" {
		t.Fatalf("component should pass through, got %v", got)
	}
}

func TestSanitizeValueHashesUserID(t *testing.T) {
	got, ok := sanitizeValue("user_id", "3f2a").(string)
	if !ok || !strings.HasPrefix(got, "hash:") {
		t.Fatalf("user_id should be hashed, got %v", got)
	}
	again, _ := sanitizeValue("user_id", "3f2a").(string)
	if got != again {
		t.Fatalf("hash must be stable for the same input: %q vs %q", got, again)
	}
	other, _ := sanitizeValue("user_id", "9c1d").(string)
	if got == other {
		t.Fatalf("distinct ids must hash differently")
	}
}

func TestSanitizeValueRecursesIntoMaps(t *testing.T) {
	in := map[string]any{
		"Token":   "secret",
		"chat_id": "b1f0",
	}
	out, ok := sanitizeValue("payload", in).(map[string]any)
	if !ok {
		t.Fatalf("map value should stay a map")
	}
	if out["Token"] != "[REDACTED]" {
		t.Fatalf("nested token key should be redacted, got %v", out["Token"])
	}
	if out["chat_id"] != "b1f0" {
		t.Fatalf("nested ordinary key should pass through, got %v", out["chat_id"])
	}
}

func TestLooksLikeJWT(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	if !looksLikeJWT(jwt) {
		t.Fatalf("three long dot-parts should look like a JWT")
	}
	if looksLikeJWT("file.tar.gz") {
		t.Fatalf("short dot-parts must not be mistaken for a JWT")
	}
	if got := sanitizeValue("note", jwt); got != "[REDACTED]" {
		t.Fatalf("JWT under a generic key should be redacted, got %v", got)
	}
}

func TestHashValueEmptyInput(t *testing.T) {
	if got := hashValue(""); got != "" {
		t.Fatalf("empty input should hash to empty, got %q", got)
	}
	if got := hashValue(nil); got != "" {
		t.Fatalf("nil input should hash to empty, got %q", got)
	}
}
