// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidator_Locator(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"empty is optional", "", false},
		{"hls", "https://cdn.example.com/live/master.m3u8", false},
		{"dash with query", "http://cdn.example.com/a/manifest.mpd?token=x", false},
		{"rtmp scheme", "rtmp://cdn.example.com/live", true},
		{"no host", "http:///a.mpd", true},
		{"no path", "https://cdn.example.com/", true},
		{"relative", "a.mpd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Locator("sources.hls", tt.value)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"all interfaces", ":8088", false},
		{"loopback", "127.0.0.1:8088", false},
		{"kernel chosen", "127.0.0.1:0", false},
		{"empty", "", true},
		{"missing port", "localhost", true},
		{"port not numeric", "localhost:http", true},
		{"port too large", ":70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.ListenAddr("api.listenAddr", tt.value)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Range(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		min     int
		max     int
		wantErr bool
	}{
		{"in range", 5, 1, 10, false},
		{"at min", 1, 1, 10, false},
		{"at max", 10, 1, 10, false},
		{"below min", 0, 1, 10, true},
		{"above max", 11, 1, 10, true},
		{"negative range", -1, -1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Range("testValue", tt.value, tt.min, tt.max)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Scalars(t *testing.T) {
	v := New()
	v.NotEmpty("a", "  ")
	v.OneOf("b", "trace", []string{"debug", "info"})
	v.Positive("c", 0)
	v.NonNegative("d", -1)
	v.MinDuration("e", 10*time.Millisecond, time.Second)

	v.NotEmpty("ok1", "x")
	v.OneOf("ok2", "info", []string{"debug", "info"})
	v.Positive("ok3", 1)
	v.NonNegative("ok4", 0)
	v.MinDuration("ok5", time.Second, time.Second)

	if got := len(v.Errors()); got != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", got, v.Err())
	}
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if v.Errors()[i].Field != want {
			t.Errorf("error %d: expected field %s, got %s", i, want, v.Errors()[i].Field)
		}
	}
}

func TestValidationError(t *testing.T) {
	v := New()
	if v.Err() != nil {
		t.Fatalf("expected nil error for valid validator")
	}

	v.AddError("one", "first", nil)
	err := v.Err()
	if err.Error() != "validation failed for one: first" {
		t.Errorf("unexpected single error text: %s", err.Error())
	}

	v.AddError("two", "second", nil)
	err = v.Err()
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined errors, got %s", err.Error())
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError")
	}
	if len(verr.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %d", len(verr.Errors()))
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if _, err := ParseLogLevel(s); err != nil {
			t.Errorf("%s: unexpected error %v", s, err)
		}
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}
