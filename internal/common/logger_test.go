package common

import "testing"

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"defaults", "", "", false},
		{"json debug", "debug", "json", false},
		{"console warn", "warn", "console", false},
		{"bad level", "verbose", "console", true},
		{"bad format", "info", "logfmt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SetupLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("SetupLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
		})
	}
}
