package origins

import (
	"reflect"
	"testing"
)

func TestAllowlist_Allowed(t *testing.T) {
	a, invalid := Parse([]string{
		"https://app.example.com",
		"http://127.0.0.1:*",
		"http://localhost:3000",
		"not an origin",
		"ftp://files.example.com",
	})
	if len(invalid) != 2 {
		t.Fatalf("expected 2 invalid entries, got %v", invalid)
	}

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"HTTPS://APP.example.com", true},
		{"http://app.example.com", false},
		{"https://app.example.com:8443", false},
		{"http://127.0.0.1:55123", true},
		{"http://127.0.0.1", true},
		{"http://localhost:3000", true},
		{"http://localhost:3001", false},
		{"https://evil.example.com", false},
		{"", false},
		{"null", false},
	}
	for _, tc := range cases {
		if got := a.Allowed(tc.origin); got != tc.want {
			t.Fatalf("Allowed(%q)=%v want %v", tc.origin, got, tc.want)
		}
	}
}

func TestAllowlist_Star(t *testing.T) {
	a, _ := Parse([]string{"*"})
	if !a.AllowAny() || !a.Allowed("https://anything.test") {
		t.Fatalf("expected wildcard to allow everything")
	}
	if got := a.HostPatterns(); !reflect.DeepEqual(got, []string{"*"}) {
		t.Fatalf("HostPatterns()=%v", got)
	}
}

func TestAllowlist_HostPatterns(t *testing.T) {
	a, _ := Parse([]string{"http://127.0.0.1:*", "https://app.example.com", "http://localhost:3000", "https://app.example.com"})

	want := []string{"127.0.0.1:*", "app.example.com", "localhost:3000"}
	if got := a.HostPatterns(); !reflect.DeepEqual(got, want) {
		t.Fatalf("HostPatterns()=%v want %v", got, want)
	}
}

func TestAllowlist_Empty(t *testing.T) {
	a, _ := Parse(nil)
	if !a.Empty() || a.Allowed("http://localhost") {
		t.Fatalf("empty allowlist must deny")
	}
}
