package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// LanguageDetector scores an utterance against weighted per-language lexicons.
// It is pure and safe for concurrent use.
type LanguageDetector struct {
	lexicons []LanguageLexicon
	fallback valueobject.Language
}

// NewLanguageDetector builds a detector over validated tables.
func NewLanguageDetector(tables *Tables) (*LanguageDetector, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &LanguageDetector{
		lexicons: tables.Lexicons,
		fallback: valueobject.DefaultLanguage,
	}, nil
}

// Detect returns the language of text.
//
// A leading greeting short-circuits the decision, checked in lexicon order.
// Otherwise every contained lexicon term adds its weight (substring match,
// so "is " also fires inside "mais "), and the strictly higher score wins.
// Ties and empty input return the default language.
func (d *LanguageDetector) Detect(text string) valueobject.Language {
	s := normalize(text)
	if s == "" {
		return d.fallback
	}

	for _, lex := range d.lexicons {
		for _, g := range lex.Greetings {
			if startsWithWord(s, g) {
				return lex.Language
			}
		}
	}

	scores := make(map[valueobject.Language]int, len(d.lexicons))
	for _, lex := range d.lexicons {
		for _, term := range lex.Terms {
			if strings.Contains(s, term.Term) {
				scores[lex.Language] += term.Weight
			}
		}
	}

	best := d.fallback
	bestScore := scores[d.fallback]
	for _, lex := range d.lexicons {
		if sc := scores[lex.Language]; sc > bestScore {
			best, bestScore = lex.Language, sc
		}
	}
	return best
}

// startsWithWord reports whether s begins with word followed by a non-letter
// or the end of the string, so "hi" does not match "hier".
func startsWithWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	rest := s[len(word):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLetter(r)
}
