package scoring

import (
	"math"
	"testing"
)

func TestSentimentBounds(t *testing.T) {
	t.Parallel()

	scorer := NewSentimentScorer()

	cases := []struct {
		name string
		text string
		sign int
	}{
		{name: "positive", text: "great launch, amazing growth, impressive results", sign: 1},
		{name: "negative", text: "terrible crash, awful decline, broken product", sign: -1},
		{name: "neutral", text: "quarterly report released on schedule", sign: 0},
		{name: "all positive words", text: "good great excellent", sign: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := scorer.Sentiment(tc.text)
			if got < -1 || got > 1 {
				t.Fatalf("sentiment out of [-1,1]: %f", got)
			}
			switch {
			case tc.sign > 0 && got <= 0:
				t.Fatalf("expected positive sentiment, got %f", got)
			case tc.sign < 0 && got >= 0:
				t.Fatalf("expected negative sentiment, got %f", got)
			case tc.sign == 0 && got != 0:
				t.Fatalf("expected neutral sentiment, got %f", got)
			}
		})
	}
}

func TestSentimentEmptyText(t *testing.T) {
	t.Parallel()

	if got := NewSentimentScorer().Sentiment(""); got != 0 {
		t.Fatalf("empty text must be neutral, got %f", got)
	}
	if got := NewSentimentScorer().Sentiment("   ...   "); got != 0 {
		t.Fatalf("punctuation-only text must be neutral, got %f", got)
	}
}

func TestViralityNeedsTwoRuns(t *testing.T) {
	t.Parallel()

	if got := Virality(nil); got != 0 {
		t.Fatalf("no history must yield 0, got %f", got)
	}
	if got := Virality([]float64{0.5}); got != 0 {
		t.Fatalf("single run must yield 0, got %f", got)
	}
}

func TestViralitySlope(t *testing.T) {
	t.Parallel()

	if got := Virality([]float64{0.2, 0.5}); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected slope 0.3, got %f", got)
	}
	// Only the two most recent runs matter.
	if got := Virality([]float64{0.9, 0.2, 0.5}); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected slope 0.3 from the last two runs, got %f", got)
	}
}

func TestViralityFlooredAtZero(t *testing.T) {
	t.Parallel()

	if got := Virality([]float64{0.8, 0.3}); got != 0 {
		t.Fatalf("declining engagement is not viral, got %f", got)
	}
}
