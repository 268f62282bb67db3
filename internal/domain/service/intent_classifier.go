package service

import (
	"strings"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// IntentClassifier matches an utterance against the ordered keyword rules of
// its language. The first matching rule wins; no match yields general.
type IntentClassifier struct {
	rules map[valueobject.Language][]IntentRule
}

// NewIntentClassifier builds a classifier over validated tables.
func NewIntentClassifier(tables *Tables) (*IntentClassifier, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &IntentClassifier{rules: tables.Intents}, nil
}

// Classify returns the intent of text in the given language.
func (c *IntentClassifier) Classify(text string, language valueobject.Language) valueobject.Intent {
	s := normalize(text)
	if s == "" {
		return valueobject.IntentGeneral
	}

	rules, ok := c.rules[language]
	if !ok {
		rules = c.rules[valueobject.DefaultLanguage]
	}
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(s, kw) {
				return rule.Intent
			}
		}
	}
	return valueobject.IntentGeneral
}
