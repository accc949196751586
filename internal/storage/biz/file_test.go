package biz

import (
	"strings"
	"testing"
)

func TestContentChecksum(t *testing.T) {
	sum := ContentChecksum([]byte("hello"))
	if len(sum) != 64 {
		t.Errorf("checksum length = %d, want 64", len(sum))
	}
	if sum != ContentChecksum([]byte("hello")) {
		t.Error("checksum is not deterministic")
	}
	if sum == ContentChecksum([]byte("hello!")) {
		t.Error("different content produced the same checksum")
	}
}

func TestUserChecksumSeparatesUsers(t *testing.T) {
	content := ContentChecksum([]byte("shared bytes"))

	alice := UserChecksum("user-a", content)
	bob := UserChecksum("user-b", content)

	if alice == bob {
		t.Error("identical content for different users must produce distinct dedup keys")
	}
	if alice != UserChecksum("user-a", content) {
		t.Error("dedup key is not deterministic")
	}
}

func TestStoragePrefix(t *testing.T) {
	checksum := strings.Repeat("ab", 32)
	prefix := StoragePrefix("u1234", checksum)

	want := "u1/ab/" + checksum
	if prefix != want {
		t.Errorf("StoragePrefix = %q, want %q", prefix, want)
	}
}

func TestInstancePath(t *testing.T) {
	checksum := strings.Repeat("cd", 32)
	prefix := StoragePrefix("user42", checksum)

	got := InstancePath(prefix, checksum, "thumbnail", "jpg")
	want := prefix + "/" + checksum + "_thumbnail.jpg"
	if got != want {
		t.Errorf("InstancePath = %q, want %q", got, want)
	}

	// No extension, no trailing dot
	got = InstancePath(prefix, checksum, VariantOriginal, "")
	if strings.Contains(got, ".") {
		t.Errorf("InstancePath without extension contains a dot: %q", got)
	}
}

func TestMimeTypeForFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.JPG", "image/jpeg"},
		{"clip.mp4", "video/mp4"},
		{"paper.pdf", "application/pdf"},
		{"notes.txt", "text/plain"},
		{"mystery.bin", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := MimeTypeForFilename(tt.filename); got != tt.want {
			t.Errorf("MimeTypeForFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestFileTypeForMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", FileTypeImage},
		{"video/webm", FileTypeVideo},
		{"application/pdf", FileTypeDocument},
		{"text/csv", FileTypeDocument},
		{"application/zip", FileTypeOther},
	}

	for _, tt := range tests {
		if got := FileTypeForMime(tt.mime); got != tt.want {
			t.Errorf("FileTypeForMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestClampCopies(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, MinRedundancy},
		{0, MinRedundancy},
		{1, 1},
		{3, 3},
		{5, 5},
		{99, MaxRedundancy},
	}

	for _, tt := range tests {
		if got := ClampCopies(tt.in); got != tt.want {
			t.Errorf("ClampCopies(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
