package mediatype

import (
	"io"
	"log/slog"
	"testing"
)

func testDetector() *Detector {
	return NewDetector(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

// pngMagic is the 8-byte PNG signature plus a minimal chunk header.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

var jpegMagic = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

var gifMagic = []byte("GIF89a\x01\x00\x01\x00")

func TestDetectMagicBytes(t *testing.T) {
	d := testDetector()

	cases := []struct {
		name string
		body []byte
		want string
	}{
		{"png", pngMagic, "png"},
		{"jpg", jpegMagic, "jpg"},
		{"gif", gifMagic, "gif"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// A lying Content-Type and extension-free URL prove the sniff wins.
			ext, body := d.Detect("https://cdn.example.com/asset", tc.body, "application/octet-stream")
			if ext != tc.want {
				t.Errorf("expected %q, got %q", tc.want, ext)
			}
			if &body[0] != &tc.body[0] {
				t.Error("bytes must pass through untouched without transcode")
			}
		})
	}
}

func TestDetectContentTypeFallback(t *testing.T) {
	d := testDetector()

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	ext, _ := d.Detect("https://cdn.example.com/logo", svg, "image/svg+xml; charset=utf-8")
	if ext != "svg" {
		t.Errorf("expected svg from content type, got %q", ext)
	}
}

func TestDetectURLFallback(t *testing.T) {
	d := testDetector()

	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/a/photo.webp", "webp"},
		{"https://cdn.example.com/photo.jpg?width=600", "jpg"},
		{"https://cdn.example.com/photo.JPG", "JPG"},
		{"https://cdn.example.com/archive.jpg4", "jpg"},
		{"https://cdn.example.com/no-extension", ""},
	}
	for _, tc := range cases {
		ext, _ := d.Detect(tc.url, []byte("not a known format"), "")
		if ext != tc.want {
			t.Errorf("Detect(%q) ext = %q, want %q", tc.url, ext, tc.want)
		}
	}
}

func TestDetectHEICTranscodeFailureKeepsOriginal(t *testing.T) {
	d := testDetector()

	// Valid-looking ftyp box so the sniff says heic, but no decodable image.
	body := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic")...)
	body = append(body, make([]byte, 32)...)

	ext, out := d.Detect("https://cdn.example.com/broken.heic", body, "")
	if ext != "heic" {
		t.Fatalf("expected heic, got %q", ext)
	}
	if len(out) != len(body) {
		t.Error("failed transcode must keep the original buffer")
	}
}

func TestExtensionFromMIME(t *testing.T) {
	cases := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpg"},
		{"IMAGE/PNG", "png"},
		{"image/gif; charset=binary", "gif"},
		{"application/pdf", "pdf"},
		{"application/x-unknown", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extensionFromMIME(tc.contentType); got != tc.want {
			t.Errorf("extensionFromMIME(%q) = %q, want %q", tc.contentType, got, tc.want)
		}
	}
}
