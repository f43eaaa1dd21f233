package scoring

// Lexicon-based sentiment plus a virality heuristic. The pipeline needs
// stable, cheap per-document signals, not ML-grade classification.

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "amazing": true,
	"awesome": true, "love": true, "best": true, "win": true, "wins": true,
	"success": true, "successful": true, "happy": true, "positive": true,
	"growth": true, "improve": true, "improved": true, "breakthrough": true,
	"popular": true, "strong": true, "impressive": true, "fantastic": true,
	"beautiful": true, "brilliant": true, "exciting": true, "helpful": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true, "worst": true,
	"fail": true, "fails": true, "failure": true, "broken": true,
	"sad": true, "negative": true, "decline": true, "drop": true,
	"crash": true, "scandal": true, "problem": true, "problems": true,
	"weak": true, "poor": true, "disappointing": true, "ugly": true,
	"wrong": true, "boring": true, "useless": true, "angry": true,
}

// SentimentScorer produces a coarse per-document sentiment value.
type SentimentScorer struct{}

// NewSentimentScorer builds the lexicon-backed scorer.
func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{}
}

// Sentiment counts positive and negative lexicon hits normalized by document
// length. Output is clamped to [-1,1] and is 0 for empty text.
func (s *SentimentScorer) Sentiment(text string) float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var positive, negative int
	for _, token := range tokens {
		if positiveWords[token] {
			positive++
		}
		if negativeWords[token] {
			negative++
		}
	}

	return Clamp(float64(positive-negative)/float64(len(tokens)), -1, 1)
}

// Virality approximates the rate of engagement growth as the slope across the
// two most recent run-level engagement averages for the topic. Fewer than two
// runs of history means no growth signal, never an error. The result is
// floored at 0: only acceleration counts as virality.
func Virality(runEngagement []float64) float64 {
	if len(runEngagement) < 2 {
		return 0
	}
	slope := runEngagement[len(runEngagement)-1] - runEngagement[len(runEngagement)-2]
	if slope < 0 {
		return 0
	}
	return slope
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
