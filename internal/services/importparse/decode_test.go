package importparse

import (
	"testing"
)

func utf16le(s string, bom bool) []byte {
	var out []byte
	if bom {
		out = append(out, 0xFF, 0xFE)
	}
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func utf16be(s string, bom bool) []byte {
	var out []byte
	if bom {
		out = append(out, 0xFE, 0xFF)
	}
	for _, r := range s {
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}

func TestDecodeText_UTF8(t *testing.T) {
	if got := DecodeText([]byte("Gravity: 981818123.45 µGal")); got != "Gravity: 981818123.45 µGal" {
		t.Fatalf("plain utf8: %q", got)
	}
}

func TestDecodeText_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Site Name: A")...)
	if got := DecodeText(data); got != "Site Name: A" {
		t.Fatalf("bom should be stripped: %q", got)
	}
}

func TestDecodeText_UTF16WithBOM(t *testing.T) {
	if got := DecodeText(utf16le("Set\tSigma", true)); got != "Set\tSigma" {
		t.Fatalf("utf16le bom: %q", got)
	}
	if got := DecodeText(utf16be("Set\tSigma", true)); got != "Set\tSigma" {
		t.Fatalf("utf16be bom: %q", got)
	}
}

func TestDecodeText_UTF16WithoutBOM(t *testing.T) {
	if got := DecodeText(utf16le("Project Name: X", false)); got != "Project Name: X" {
		t.Fatalf("bom-less utf16le: %q", got)
	}
	if got := DecodeText(utf16be("Project Name: X", false)); got != "Project Name: X" {
		t.Fatalf("bom-less utf16be: %q", got)
	}
}

func TestDecodeText_Windows1252Fallback(t *testing.T) {
	// 0xB5 = µ in Windows-1252；单独出现时不是合法 UTF-8
	data := []byte{'5', '.', '2', ' ', 0xB5, 'G', 'a', 'l'}
	if got := DecodeText(data); got != "5.2 µGal" {
		t.Fatalf("cp1252 fallback: %q", got)
	}
}

func TestDecodeText_Empty(t *testing.T) {
	if got := DecodeText(nil); got != "" {
		t.Fatalf("empty input: %q", got)
	}
}
