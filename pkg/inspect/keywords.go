package inspect

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// stopWords are skipped in frequency counts. English only; other languages
// just get noisier top lists.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {}, "and": {},
	"any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {},
	"by": {}, "can": {}, "do": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "how": {}, "i": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "just": {}, "me": {}, "more": {},
	"my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "one": {}, "or": {},
	"our": {}, "out": {}, "so": {}, "some": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "up": {}, "until": {}, "us": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "which": {}, "while": {}, "who": {},
	"will": {}, "with": {}, "you": {}, "your": {},
}

// WordFrequency counts the non-stop words of text, lowercased with
// surrounding punctuation removed.
func WordFrequency(text string) map[string]int {
	frequencies := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if _, skip := stopWords[word]; skip || len([]rune(word)) < 2 {
			continue
		}
		frequencies[word]++
	}
	return frequencies
}

// TopKeywords returns the n most frequent words formatted as "word:count".
// Ties are broken alphabetically so output is stable.
func TopKeywords(counts map[string]int, n int) []string {
	type kv struct {
		Key   string
		Value int
	}
	ss := make([]kv, 0, len(counts))
	for k, v := range counts {
		ss = append(ss, kv{k, v})
	}
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})

	if len(ss) < n {
		n = len(ss)
	}
	keywords := make([]string, n)
	for i := 0; i < n; i++ {
		keywords[i] = fmt.Sprintf("%s:%d", ss[i].Key, ss[i].Value)
	}
	return keywords
}
