package render

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatDOT, "text/vnd.graphviz; charset=utf-8"},
		{FormatSVG, "image/svg+xml"},
		{FormatPDF, "application/pdf"},
		{FormatPNG, "image/png"},
		{FormatJSON, "application/json"},
		{"gif", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := ContentType(tt.format); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestToPDF_NoConverter(t *testing.T) {
	if _, err := exec.LookPath("rsvg-convert"); err == nil {
		t.Skip("rsvg-convert is installed")
	}
	_, err := ToPDF(context.Background(), []byte("<svg/>"))
	if !errors.Is(err, ErrNoConverter) {
		t.Errorf("ToPDF() error = %v, want ErrNoConverter", err)
	}
}

func TestToPNG(t *testing.T) {
	if _, err := exec.LookPath("rsvg-convert"); err != nil {
		t.Skip("rsvg-convert not installed")
	}
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	png, err := ToPNG(context.Background(), svg, 2)
	if err != nil {
		t.Fatalf("ToPNG() error: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("ToPNG() output is not a PNG")
	}
}
