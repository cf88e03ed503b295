package errors

import (
	"strings"
	"testing"
)

func TestValidateSnapshotID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "0b8c4c3e-7f0e-4a51-9d4e-5d3c7b1a2f10", false},
		{"simple", "vgg", false},
		{"with dot", "run.1", false},
		{"with underscore", "stack_lstm", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"path traversal", "a..b", true},
		{"slash", "a/b", true},
		{"leading dot", ".hidden", true},
		{"leading dash", "-x", true},
		{"space", "a b", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshotID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSnapshotID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

func TestValidateSymbolRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "@id:1", false},
		{"valid large", "@id:123456789", false},

		{"empty", "", true},
		{"no prefix", "42", true},
		{"escaped string", "@@id:1", true},
		{"non-numeric", "@id:abc", true},
		{"trailing", "@id:1/x", true},
		{"control char", "@id:1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbolRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbolRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidSymbol) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidSymbol)
			}
		})
	}
}

func TestValidateFormats(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "svg", []string{"svg"}, false},
		{"multiple", "svg,png", []string{"svg", "png"}, false},
		{"spaces and case", " SVG , dot ", []string{"svg", "dot"}, false},
		{"duplicates", "svg,svg", []string{"svg"}, false},
		{"trailing comma", "pdf,", []string{"pdf"}, false},

		{"empty", "", nil, true},
		{"unknown", "gif", nil, true},
		{"mixed unknown", "svg,gif", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFormats(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFormats(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !Is(err, ErrCodeInvalidFormat) {
					t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidFormat)
				}
				return
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ValidateFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
