package middleware

import (
	"strings"
	"testing"
)

func TestValidateChannelID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"canonical id", "UCabcdefghijklmnopqrstuv", "UCabcdefghijklmnopqrstuv", false},
		{"id with dash and underscore", "UCa-b_cdefghijklmnopqrst", "UCa-b_cdefghijklmnopqrst", false},
		{"surrounding whitespace trimmed", "  UCabcdefghijklmnopqrstuv  ", "UCabcdefghijklmnopqrstuv", false},
		{"empty", "", "", true},
		{"missing UC prefix", "XXabcdefghijklmnopqrstuv", "", true},
		{"too short", "UCshort", "", true},
		{"too long", "UC" + strings.Repeat("a", 40), "", true},
		{"invalid characters", "UCabcdefghij!lmnopqrstuv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateChannelID(tt.input)
			if (errMsg != "") != tt.wantErr {
				t.Fatalf("ValidateChannelID(%q) errMsg = %q, wantErr %v", tt.input, errMsg, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateChannelID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateVideoID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"dash and underscore", "a-b_c123XYZ", "a-b_c123XYZ", false},
		{"whitespace trimmed", " dQw4w9WgXcQ ", "dQw4w9WgXcQ", false},
		{"empty", "", "", true},
		{"too short", "abc", "", true},
		{"too long", "dQw4w9WgXcQQ", "", true},
		{"invalid characters", "dQw4w9WgX!Q", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateVideoID(tt.input)
			if (errMsg != "") != tt.wantErr {
				t.Fatalf("ValidateVideoID(%q) errMsg = %q, wantErr %v", tt.input, errMsg, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateVideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/channels/UCabcdefghijklmnopqrstuv", "/api/channels/:channelId"},
		{"/api/bookmarks/dQw4w9WgXcQ", "/api/bookmarks/:videoId"},
		{"/api/items/dQw4w9WgXcQ", "/api/items/:videoId"},
		{"/api/events", "/api/events"},
		{"/health/live", "/health/live"},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.path); got != tt.want {
			t.Errorf("sanitizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
