package pattern

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "STARBUCKS", b: "STARBUCKS", want: 1},
		{name: "case insensitive", a: "Starbucks", b: "STARBUCKS", want: 1},
		{name: "completely different", a: "AAAA", b: "ZZZZ", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}

	// One edit in a ten-character string scores 0.9.
	if got := Similarity("STARBUCKSX", "STARBUCKSY"); got != 0.9 {
		t.Errorf("Expected 0.9 for single edit, got %f", got)
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"STARBUCKS", "STAPLES", "DELTA AIRLINES"}

	t.Run("close match accepted", func(t *testing.T) {
		match, score, ok := BestMatch("STARBUCKS #554", candidates, 0.6)
		if !ok {
			t.Fatalf("Expected a match, got none (best score %f)", score)
		}
		if match != "STARBUCKS" {
			t.Errorf("Expected STARBUCKS, got %q", match)
		}
	})

	t.Run("below floor rejected", func(t *testing.T) {
		_, _, ok := BestMatch("COMPLETELY UNRELATED VENDOR", candidates, 0.8)
		if ok {
			t.Error("Expected no match above floor")
		}
	})

	t.Run("zero floor uses default", func(t *testing.T) {
		_, _, ok := BestMatch("XYZQWERTY", candidates, 0)
		if ok {
			t.Error("Expected default floor to reject a junk input")
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		_, _, ok := BestMatch("STARBUCKS", nil, 0.8)
		if ok {
			t.Error("Expected no match with no candidates")
		}
	})
}
