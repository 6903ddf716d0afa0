package asset

import (
	"testing"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

func TestImageFileName(t *testing.T) {
	tests := []struct {
		kind domain.ImageKind
		mime string
		want string
	}{
		{domain.KindColor, "image/png", "color.png"},
		{domain.KindStencil, "image/png", "stencil.png"},
		{domain.KindColor, "image/webp", "color.webp"},
		{domain.KindStencil, "application/octet-stream", "stencil.png"},
	}
	for _, tt := range tests {
		if got := ImageFileName(tt.kind, tt.mime); got != tt.want {
			t.Errorf("ImageFileName(%s, %s) = %s, want %s", tt.kind, tt.mime, got, tt.want)
		}
	}
}

func TestImageIndex(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"color_1.png", 1, true},
		{"stencil_12.webp", 12, true},
		{"color_7.jpeg", 7, true},
		{"color.png", 0, false},
		{"design_3.md", 0, false},
		{"color_x.png", 0, false},
	}
	for _, tt := range tests {
		got, ok := ImageIndex(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ImageIndex(%q) = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNextIndex(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  int
	}{
		{"空", nil, 1},
		{"画像以外だけ", []string{"design_4.md", "notes.txt"}, 1},
		{"最大の次", []string{"color_1.png", "stencil_3.png", "color_2.webp"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextIndex(tt.files); got != tt.want {
				t.Errorf("NextIndex(%v) = %d, want %d", tt.files, got, tt.want)
			}
		})
	}
}
