package service

import (
	"fmt"
	"strings"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// WeightedTerm is a lexicon entry. Terms are matched as lower-case substrings.
type WeightedTerm struct {
	Term   string
	Weight int
}

// LanguageLexicon holds the indicator terms and leading greetings of one language.
type LanguageLexicon struct {
	Language  valueobject.Language
	Greetings []string
	Terms     []WeightedTerm
}

// IntentRule maps an intent to its keywords. Rules are evaluated in slice order.
type IntentRule struct {
	Intent   valueobject.Intent
	Keywords []string
}

// Tables bundles the static tables read by the detector, classifier and
// canned responder. Built once at startup and never mutated.
type Tables struct {
	// Lexicons are checked for greeting overrides in slice order.
	Lexicons []LanguageLexicon
	// Intents is keyed by language; the order inside each slice is the
	// classification precedence.
	Intents map[valueobject.Language][]IntentRule
	// Canned replies may contain {name}, {email}, {phone}, {whatsapp} and
	// {website} placeholders, filled from the BusinessProfile.
	Canned map[valueobject.Language]map[valueobject.Intent]string
}

// DefaultTables returns the built-in French/English tables.
//
// Intent precedence is greeting, pricing, contact, services, technical.
// A message that mentions both a price and a phone number is a pricing
// question; reordering the rules changes classification of such messages.
func DefaultTables() *Tables {
	return &Tables{
		Lexicons: []LanguageLexicon{
			{
				Language:  valueobject.LanguageFrench,
				Greetings: []string{"bonjour", "bonsoir", "salut", "coucou", "allô", "allo"},
				Terms: []WeightedTerm{
					{"bonjour", 2}, {"bonsoir", 2}, {"salut", 2}, {"merci", 2},
					{"combien", 2}, {"coûte", 2}, {"tarif", 2}, {"devis", 2},
					{"vous", 2}, {"votre", 2}, {"pourquoi", 2}, {"comment", 2},
					{"est-ce", 2}, {"s'il vous plaît", 2}, {"je voudrais", 2}, {"besoin", 2},
					{"création", 2}, {"référencement", 2}, {"quel", 1}, {"prix", 1},
					{"site", 1}, {"je ", 1}, {" le ", 1}, {" la ", 1}, {" les ", 1},
					{" des ", 1}, {" et ", 1}, {"avec", 1}, {"pour", 1}, {"une ", 1},
					{"aide", 1}, {"contacter", 1},
				},
			},
			{
				Language:  valueobject.LanguageEnglish,
				Greetings: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
				Terms: []WeightedTerm{
					{"hello", 2}, {"hey", 2}, {"thanks", 2}, {"thank you", 2},
					{"how much", 2}, {"what", 2}, {"please", 2}, {"would like", 2},
					{"could you", 2}, {"pricing", 2}, {"website", 2}, {"your", 2},
					{"does", 2}, {"price", 1}, {"cost", 1}, {"the ", 1}, {" and ", 1},
					{"you", 1}, {"help", 1}, {"need", 1}, {"is ", 1}, {"are ", 1},
					{"with", 1}, {"for ", 1}, {"how", 1}, {"do ", 1}, {"can ", 1},
				},
			},
		},
		Intents: map[valueobject.Language][]IntentRule{
			valueobject.LanguageFrench: {
				{valueobject.IntentGreeting, []string{"bonjour", "bonsoir", "salut", "coucou"}},
				{valueobject.IntentPricing, []string{"prix", "tarif", "coût", "cout", "combien", "devis", "budget"}},
				{valueobject.IntentContact, []string{"contact", "téléphone", "telephone", "email", "mail", "appeler", "joindre", "whatsapp", "adresse", "rendez-vous"}},
				{valueobject.IntentServices, []string{"service", "site", "seo", "référencement", "design", "logo", "réseaux sociaux", "marketing", "boutique en ligne", "e-commerce", "proposez", "offre"}},
				{valueobject.IntentTechnical, []string{"bug", "erreur", "ne marche pas", "ne fonctionne pas", "panne", "hébergement", "domaine", "ssl", "lent", "mise à jour", "maintenance", "wordpress"}},
			},
			valueobject.LanguageEnglish: {
				{valueobject.IntentGreeting, []string{"hello", "hey", "good morning", "good afternoon", "good evening", "greetings"}},
				{valueobject.IntentPricing, []string{"price", "pricing", "cost", "how much", "quote", "budget"}},
				{valueobject.IntentContact, []string{"contact", "phone", "email", "e-mail", "call", "reach", "whatsapp", "address", "meeting"}},
				{valueobject.IntentServices, []string{"service", "website", "site", "seo", "design", "logo", "branding", "social media", "marketing", "e-commerce", "online store", "offer"}},
				{valueobject.IntentTechnical, []string{"bug", "error", "not working", "broken", "hosting", "domain", "ssl", "slow", "update", "maintenance", "wordpress"}},
			},
		},
		Canned: map[valueobject.Language]map[valueobject.Intent]string{
			valueobject.LanguageFrench: {
				valueobject.IntentGreeting:  "Bonjour et bienvenue chez {name} ! Comment puis-je vous aider aujourd'hui ? Vous pouvez aussi nous écrire à {email}.",
				valueobject.IntentServices:  "{name} accompagne les petites entreprises : création de sites web, référencement (SEO), réseaux sociaux et identité visuelle. Écrivez-nous à {email} pour en discuter.",
				valueobject.IntentPricing:   "Nos tarifs dépendent de votre projet. Demandez un devis gratuit à {email} ou sur WhatsApp au {whatsapp}, nous répondons sous 24 h.",
				valueobject.IntentContact:   "Vous pouvez nous joindre par email à {email}, par téléphone au {phone} ou sur WhatsApp au {whatsapp}.",
				valueobject.IntentTechnical: "Désolé pour ce souci technique. Décrivez-le-nous à {email} ou au {phone} et notre équipe vous répond rapidement.",
				valueobject.IntentGeneral:   "Merci pour votre message ! Pour une réponse précise, contactez-nous à {email} ou au {phone}.",
			},
			valueobject.LanguageEnglish: {
				valueobject.IntentGreeting:  "Hello and welcome to {name}! How can I help you today? You can also write to us at {email}.",
				valueobject.IntentServices:  "{name} helps small businesses with website creation, SEO, social media and branding. Email us at {email} to talk about your project.",
				valueobject.IntentPricing:   "Our prices depend on your project. Ask for a free quote at {email} or on WhatsApp at {whatsapp}, we reply within 24 hours.",
				valueobject.IntentContact:   "You can reach us by email at {email}, by phone at {phone} or on WhatsApp at {whatsapp}.",
				valueobject.IntentTechnical: "Sorry about the technical issue. Describe it to us at {email} or {phone} and our team will get back to you quickly.",
				valueobject.IntentGeneral:   "Thanks for your message! For a precise answer, contact us at {email} or {phone}.",
			},
		},
	}
}

// Validate reports malformed tables. It is the only error class allowed to
// escape the chat pipeline, and only at construction time.
func (t *Tables) Validate() error {
	if t == nil {
		return fmt.Errorf("tables: nil")
	}
	if len(t.Lexicons) == 0 {
		return fmt.Errorf("tables: no language lexicon")
	}
	for _, lex := range t.Lexicons {
		if !lex.Language.IsSupported() {
			return fmt.Errorf("tables: unsupported lexicon language %q", lex.Language)
		}
		for _, g := range lex.Greetings {
			if strings.TrimSpace(g) == "" {
				return fmt.Errorf("tables: empty greeting in %s lexicon", lex.Language)
			}
		}
		for _, term := range lex.Terms {
			if strings.TrimSpace(term.Term) == "" {
				return fmt.Errorf("tables: empty term in %s lexicon", lex.Language)
			}
			if term.Weight < 1 {
				return fmt.Errorf("tables: term %q in %s lexicon has weight %d", term.Term, lex.Language, term.Weight)
			}
		}
	}

	for _, lang := range valueobject.SupportedLanguages() {
		rules, ok := t.Intents[lang]
		if !ok {
			return fmt.Errorf("tables: no intent rules for %s", lang)
		}
		seen := make(map[valueobject.Intent]bool, len(rules))
		for _, rule := range rules {
			if !rule.Intent.IsValid() || rule.Intent == valueobject.IntentGeneral {
				return fmt.Errorf("tables: invalid intent rule %q for %s", rule.Intent, lang)
			}
			if seen[rule.Intent] {
				return fmt.Errorf("tables: duplicate intent rule %q for %s", rule.Intent, lang)
			}
			seen[rule.Intent] = true
			if len(rule.Keywords) == 0 {
				return fmt.Errorf("tables: intent %q for %s has no keywords", rule.Intent, lang)
			}
			for _, kw := range rule.Keywords {
				if strings.TrimSpace(kw) == "" {
					return fmt.Errorf("tables: empty keyword for intent %q (%s)", rule.Intent, lang)
				}
			}
		}

		canned, ok := t.Canned[lang]
		if !ok {
			return fmt.Errorf("tables: no canned replies for %s", lang)
		}
		if strings.TrimSpace(canned[valueobject.IntentGeneral]) == "" {
			return fmt.Errorf("tables: missing general canned reply for %s", lang)
		}
	}
	return nil
}

// normalize lower-cases and trims an utterance before matching.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
