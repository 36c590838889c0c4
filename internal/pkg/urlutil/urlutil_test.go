package urlutil

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestSafeAvatarURL(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want *string
	}{
		{name: "nil", raw: nil, want: nil},
		{name: "https", raw: strPtr("https://avatars.githubusercontent.com/u/9?v=4"), want: strPtr("https://avatars.githubusercontent.com/u/9?v=4")},
		{name: "http", raw: strPtr("http://example.com/a.png"), want: strPtr("http://example.com/a.png")},
		{name: "surrounding space", raw: strPtr("  https://p/a.png "), want: strPtr("https://p/a.png")},
		{name: "javascript", raw: strPtr("javascript:alert(1)"), want: nil},
		{name: "data", raw: strPtr("data:image/png;base64,AAAA"), want: nil},
		{name: "relative", raw: strPtr("/avatars/1.png"), want: nil},
		{name: "unparseable", raw: strPtr("http://[::1"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeAvatarURL(tt.raw)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("SafeAvatarURL() = %q, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("SafeAvatarURL() = nil, want %q", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("SafeAvatarURL() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestBuildFrontendErrorURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		code    string
		want    string
	}{
		{
			name:    "bare origin",
			baseURL: "http://localhost:3000",
			code:    "login_failed",
			want:    "http://localhost:3000?error=login_failed",
		},
		{
			name:    "path kept",
			baseURL: "https://app.example.com/welcome",
			code:    "email_unavailable",
			want:    "https://app.example.com/welcome?error=email_unavailable",
		},
		{
			name:    "existing query kept",
			baseURL: "https://app.example.com/?lang=en",
			code:    "unsupported_provider",
			want:    "https://app.example.com/?error=unsupported_provider&lang=en",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildFrontendErrorURL(tt.baseURL, tt.code)
			if err != nil {
				t.Fatalf("BuildFrontendErrorURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildFrontendErrorURL() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := BuildFrontendErrorURL("://bad", "x"); err == nil {
		t.Error("BuildFrontendErrorURL() expected error for malformed base URL")
	}
}
