package token

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "   \n\t ", want: 0},
		{name: "single short word", text: "cat", want: 1},
		{name: "four char word", text: "word", want: 1},
		{name: "five char word charges second token", text: "words", want: 2},
		{name: "two short words", text: "the cat", want: 2},
		{name: "long word", text: "uncharacteristically", want: 5}, // 20 chars → 1 + 19/4
		{name: "punctuation stays attached", text: "end.", want: 1},
		{name: "mixed", text: "the quick brown fox jumps", want: 8}, // three 5-char words cost 2 each
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimate_RepeatedWordsScaleLinearly(t *testing.T) {
	t.Parallel()

	// n repetitions of a single-char word must estimate to exactly n;
	// the chunker's bound tests rely on this.
	for _, n := range []int{1, 10, 160, 500} {
		text := strings.TrimSpace(strings.Repeat("a ", n))
		if got := Estimate(text); got != n {
			t.Errorf("Estimate(%d × %q) = %d, want %d", n, "a", got, n)
		}
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	t.Parallel()

	const text = "Employees must submit expense reports within thirty days."
	first := Estimate(text)
	for i := 0; i < 100; i++ {
		if got := Estimate(text); got != first {
			t.Fatalf("Estimate is not deterministic: %d then %d", first, got)
		}
	}
}
