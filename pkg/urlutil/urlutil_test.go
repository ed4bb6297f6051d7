package urlutil

import "testing"

func TestHasSourcePrefix(t *testing.T) {
	const prefix = "https://yandex.ru/video/preview/"

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"valid preview url", "https://yandex.ru/video/preview/123456", true},
		{"prefix only", "https://yandex.ru/video/preview/", true},
		{"empty", "", false},
		{"http scheme", "http://yandex.ru/video/preview/123", false},
		{"other host", "https://example.com/video/preview/123", false},
		{"uppercase", "HTTPS://YANDEX.RU/VIDEO/PREVIEW/123", false},
		{"missing trailing slash", "https://yandex.ru/video/preview", false},
		{"prefix in query", "https://evil.test/?u=https://yandex.ru/video/preview/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasSourcePrefix(tt.url, prefix); got != tt.want {
				t.Errorf("HasSourcePrefix(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestResolveIframeSrc(t *testing.T) {
	const page = "https://yandex.ru/video/preview/123?text=cats"

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "absolute unchanged",
			src:  "https://rutube.ru/play/embed/abc",
			want: "https://rutube.ru/play/embed/abc",
		},
		{
			name: "protocol relative",
			src:  "//rutube.ru/play/embed/abc?autoplay=1",
			want: "https://rutube.ru/play/embed/abc?autoplay=1",
		},
		{
			name: "root relative",
			src:  "/embed/rutube/abc",
			want: "https://yandex.ru/embed/rutube/abc",
		},
		{
			name: "path relative",
			src:  "player.html?v=rutube",
			want: "https://yandex.ru/video/preview/player.html?v=rutube",
		},
		{
			name: "surrounding whitespace",
			src:  "  https://rutube.ru/play/embed/abc \n",
			want: "https://rutube.ru/play/embed/abc",
		},
		{
			name: "empty",
			src:  "",
			want: "",
		},
		{
			name: "keeps encoding",
			src:  "https://rutube.ru/play/embed/abc?t=%2Fx(1)",
			want: "https://rutube.ru/play/embed/abc?t=%2Fx(1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveIframeSrc(tt.src, page); got != tt.want {
				t.Errorf("ResolveIframeSrc(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		urlStr  string
		baseURL string
		want    string
	}{
		{
			name:    "relative path",
			urlStr:  "embed.html",
			baseURL: "https://host.example/a/b/page",
			want:    "https://host.example/a/b/embed.html",
		},
		{
			name:    "dot slash",
			urlStr:  "./embed.html",
			baseURL: "https://host.example/a/page",
			want:    "https://host.example/a/embed.html",
		},
		{
			name:    "parent directory reference",
			urlStr:  "../player/embed",
			baseURL: "https://host.example/a/b/page",
			want:    "https://host.example/a/player/embed",
		},
		{
			name:    "parent beyond root stops at host",
			urlStr:  "../../../embed",
			baseURL: "https://host.example/a/page",
			want:    "https://host.example/embed",
		},
		{
			name:    "bare host base",
			urlStr:  "embed",
			baseURL: "https://host.example",
			want:    "https://host.example/embed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.urlStr, tt.baseURL); got != tt.want {
				t.Errorf("ResolveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSchemeHost(t *testing.T) {
	tests := []struct {
		urlStr string
		want   string
	}{
		{"https://yandex.ru/video/preview/1", "https://yandex.ru"},
		{"http://localhost:3000/current-url", "http://localhost:3000"},
		{"not a url", ""},
	}

	for _, tt := range tests {
		if got := GetSchemeHost(tt.urlStr); got != tt.want {
			t.Errorf("GetSchemeHost(%q) = %q, want %q", tt.urlStr, got, tt.want)
		}
	}
}
