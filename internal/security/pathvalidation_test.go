package security

import (
	"errors"
	"testing"
)

func TestValidateVideoName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"Film_001", false},
		{"clip.part2", false},
		{"...", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../etc/passwd", true},
		{`sub\clip`, true},
		{"nul\x00byte", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideoName(tt.name)
			if tt.wantErr && !errors.Is(err, ErrUnsafeName) {
				t.Errorf("ValidateVideoName(%q) = %v, want ErrUnsafeName", tt.name, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateVideoName(%q) = %v, want nil", tt.name, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		dir     string
		wantErr bool
	}{
		{"file in dir", "/out/shots/a.csv", "/out/shots", false},
		{"nested file", "/out/shots/x/a.csv", "/out/shots", false},
		{"unclean but inside", "/out/shots/../shots/a.csv", "/out/shots", false},
		{"relative dir", "shots/a.csv", "shots", false},
		{"parent escape", "/out/shots/../a.csv", "/out/shots", true},
		{"sibling prefix", "/out/shots2/a.csv", "/out/shots", true},
		{"dir itself", "/out/shots", "/out/shots", true},
		{"mixed abs and rel", "/out/a.csv", "out", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, tt.dir)
			if tt.wantErr && !errors.Is(err, ErrUnsafeName) {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) = %v, want ErrUnsafeName", tt.path, tt.dir, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) = %v, want nil", tt.path, tt.dir, err)
			}
		})
	}
}
