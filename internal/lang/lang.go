// Package lang guesses whether a message is English, Afrikaans or Zulu.
package lang

import "strings"

// Language is a detected input language.
type Language string

const (
	English   Language = "english"
	Afrikaans Language = "afrikaans"
	Zulu      Language = "zulu"
)

type keywords struct {
	lang  Language
	words []string
}

// Order breaks ties between non-zero scores.
var patterns = []keywords{
	{Afrikaans, []string{"ek", "jy", "dis", "nie", "wat", "hoe", "waar", "wanneer", "hoekom", "asseblief", "dankie"}},
	{Zulu, []string{"ngi", "uku", "ngi-", "isi", "aba", "ama", "sawubona", "ngiyabonga", "unjani", "kunjani"}},
	{English, []string{"the", "and", "you", "how", "what", "where", "when", "why", "please", "thank"}},
}

// Detect scores text against each keyword list, counting one point per
// keyword found anywhere in the lowercased text. Empty input and all-zero
// scores fall back to English.
func Detect(text string) Language {
	if strings.TrimSpace(text) == "" {
		return English
	}
	lower := strings.ToLower(text)

	best, bestScore := English, 0
	for _, p := range patterns {
		score := 0
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = p.lang, score
		}
	}
	return best
}
