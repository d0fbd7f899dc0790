package core

import (
	"bytes"
	"io"
	"testing"
)

// =============================================================================
// StripBOM
// =============================================================================

func TestStripBOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(StripBOM(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

// =============================================================================
// Encoding detection
// =============================================================================

func TestIsUTF8(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   bool
	}{
		{"ascii", []byte("a,b,c"), true},
		{"multi-byte", []byte("café,naïve"), true},
		{"truncated trailing rune", append([]byte("caf"), 0xC3), true},
		{"latin-1 byte mid sample", []byte{'c', 'a', 'f', 0xE9, ',', 'x'}, false},
		{"empty", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUTF8(tt.sample); got != tt.want {
				t.Errorf("IsUTF8(%q) = %v, want %v", tt.sample, got, tt.want)
			}
		})
	}
}

func TestDecodeText_Windows1252(t *testing.T) {
	raw := []byte{'c', 'a', 'f', 0xE9, ',', '1', '\n'}

	got, err := io.ReadAll(DecodeText(bytes.NewReader(raw), raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "café,1\n" {
		t.Errorf("got %q, want %q", got, "café,1\n")
	}
}

func TestDecodeSample(t *testing.T) {
	sample := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a;b\n1;2\n")...)
	if got := DecodeSample(sample); got != "a;b\n1;2\n" {
		t.Errorf("DecodeSample = %q", got)
	}
}

// =============================================================================
// OpenText
// =============================================================================

func TestOpenText(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,Alice\n")...)

	reader := OpenText(bytes.NewReader(input), input[:16])
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != "id,name\n1,Alice\n" {
		t.Errorf("got %q", result)
	}
	if reader.BytesRead != int64(len(result)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(result))
	}
}
