package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"TrendScanner/internal/config"
	"TrendScanner/internal/domain"
)

// stopWords are dropped before vocabulary construction. Engagement noise
// words carry no discriminative signal inside a single topic.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "else": true, "for": true, "nor": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "from": true,
	"by": true, "with": true, "about": true, "into": true, "over": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "am": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "can": true, "could": true, "should": true, "shall": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "you": true, "he": true, "she": true,
	"we": true, "they": true, "them": true, "his": true, "her": true,
	"my": true, "your": true, "our": true, "their": true, "me": true,
	"as": true, "so": true, "not": true, "no": true, "up": true, "out": true,
	"what": true, "when": true, "where": true, "who": true, "how": true,
	"all": true, "any": true, "some": true, "more": true, "most": true,
	"just": true, "than": true, "too": true, "very": true, "there": true,
}

// TextScorer computes per-document term-importance weights over one topic's
// current document batch. Scores are normalized within the batch: the top
// document always scores 1.0, so raw outputs are not comparable across topics.
type TextScorer struct {
	maxFeatures     int
	minDocFreq      int
	maxDocFreqRatio float64
	topTerms        int
}

// NewTextScorer binds the TF-IDF vocabulary bounds from configuration.
func NewTextScorer(cfg config.ScoringConfig) *TextScorer {
	return &TextScorer{
		maxFeatures:     cfg.MaxFeatures,
		minDocFreq:      cfg.MinDocFrequency,
		maxDocFreqRatio: cfg.MaxDocFrequencyRatio,
		topTerms:        cfg.TopTerms,
	}
}

// Score maps each document id to a term-importance value in [0,1] and returns
// the ranked top contributing terms. Zero documents yields an empty map; a
// single document trivially scores 1.0 (no discriminative signal).
func (s *TextScorer) Score(docs []domain.Document) (map[string]float64, []domain.TermWeight) {
	if len(docs) == 0 {
		return map[string]float64{}, nil
	}

	tokenized := make([][]string, len(docs))
	for i, doc := range docs {
		tokenized[i] = Tokenize(doc.Content)
	}

	if len(docs) == 1 {
		return map[string]float64{docs[0].ID: 1.0}, s.singleDocTerms(tokenized[0])
	}

	docFreq := map[string]int{}
	termFreqs := make([]map[string]int, len(docs))
	for i, tokens := range tokenized {
		tf := map[string]int{}
		for _, term := range withBigrams(tokens) {
			tf[term]++
		}
		termFreqs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}

	vocab := s.buildVocabulary(docFreq, termFreqs, len(docs))

	sums := make([]float64, len(docs))
	var maxSum float64
	for i, tf := range termFreqs {
		for term, count := range tf {
			weight, ok := vocab[term]
			if !ok {
				continue
			}
			sums[i] += float64(count) * weight
		}
		if sums[i] > maxSum {
			maxSum = sums[i]
		}
	}

	scores := make(map[string]float64, len(docs))
	for i, doc := range docs {
		if maxSum == 0 {
			scores[doc.ID] = 0
			continue
		}
		scores[doc.ID] = sums[i] / maxSum
	}

	return scores, s.rankTerms(vocab, termFreqs)
}

// buildVocabulary keeps terms inside the document-frequency bounds and caps
// the vocabulary at maxFeatures by collection frequency. Returned weights are
// smoothed IDF values.
func (s *TextScorer) buildVocabulary(docFreq map[string]int, termFreqs []map[string]int, total int) map[string]float64 {
	maxDF := int(s.maxDocFreqRatio * float64(total))
	if maxDF < 1 {
		maxDF = 1
	}

	type candidate struct {
		term string
		freq int
	}
	candidates := make([]candidate, 0, len(docFreq))
	collectionFreq := map[string]int{}
	for _, tf := range termFreqs {
		for term, count := range tf {
			collectionFreq[term] += count
		}
	}
	for term, df := range docFreq {
		if df < s.minDocFreq || df > maxDF {
			continue
		}
		candidates = append(candidates, candidate{term: term, freq: collectionFreq[term]})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].freq != candidates[j].freq {
			return candidates[i].freq > candidates[j].freq
		}
		return candidates[i].term < candidates[j].term
	})
	if len(candidates) > s.maxFeatures {
		candidates = candidates[:s.maxFeatures]
	}

	vocab := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		vocab[c.term] = 1 + math.Log(float64(total)/float64(docFreq[c.term]))
	}
	return vocab
}

// rankTerms aggregates term weight across the batch and returns the top N,
// normalized so the strongest term weighs 1.0.
func (s *TextScorer) rankTerms(vocab map[string]float64, termFreqs []map[string]int) []domain.TermWeight {
	if len(vocab) == 0 {
		return nil
	}

	totals := make(map[string]float64, len(vocab))
	for _, tf := range termFreqs {
		for term, count := range tf {
			if idf, ok := vocab[term]; ok {
				totals[term] += float64(count) * idf
			}
		}
	}

	ranked := make([]domain.TermWeight, 0, len(totals))
	for term, weight := range totals {
		ranked = append(ranked, domain.TermWeight{Term: term, Weight: weight})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Term < ranked[j].Term
	})
	if len(ranked) > s.topTerms {
		ranked = ranked[:s.topTerms]
	}

	if len(ranked) > 0 && ranked[0].Weight > 0 {
		top := ranked[0].Weight
		for i := range ranked {
			ranked[i].Weight /= top
		}
	}
	return ranked
}

// singleDocTerms ranks a lone document's terms by raw frequency; IDF is
// meaningless with one document.
func (s *TextScorer) singleDocTerms(tokens []string) []domain.TermWeight {
	tf := map[string]int{}
	for _, term := range withBigrams(tokens) {
		tf[term]++
	}
	if len(tf) == 0 {
		return nil
	}

	ranked := make([]domain.TermWeight, 0, len(tf))
	var maxCount int
	for term, count := range tf {
		ranked = append(ranked, domain.TermWeight{Term: term, Weight: float64(count)})
		if count > maxCount {
			maxCount = count
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		return ranked[i].Term < ranked[j].Term
	})
	if len(ranked) > s.topTerms {
		ranked = ranked[:s.topTerms]
	}
	for i := range ranked {
		ranked[i].Weight /= float64(maxCount)
	}
	return ranked
}

// Tokenize lower-cases text, strips punctuation, and drops stop-words and
// single-character fragments.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(token) < 2 || stopWords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// withBigrams appends adjacent-token bigrams to the unigram stream.
func withBigrams(tokens []string) []string {
	if len(tokens) < 2 {
		return tokens
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}
