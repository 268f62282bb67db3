package service

import (
	"fmt"
	"strings"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

var personas = map[valueobject.Language]string{
	valueobject.LanguageFrench: "Tu es l'assistant virtuel de %s, une agence web qui aide les petites entreprises. " +
		"Réponds toujours en français, de façon chaleureuse, concise (3 phrases maximum) et factuelle. " +
		"N'invente jamais de prix ni de délais qui ne figurent pas ci-dessous. " +
		"Termine en proposant de nous contacter si la question demande un suivi.",
	valueobject.LanguageEnglish: "You are the virtual assistant of %s, a web agency helping small businesses. " +
		"Always answer in English, warmly, concisely (3 sentences at most) and factually. " +
		"Never invent prices or timelines that are not listed below. " +
		"End by offering to get in touch when the question needs follow-up.",
}

var sectionTitles = map[valueobject.Language][3]string{
	valueobject.LanguageFrench:  {"Informations sur l'entreprise", "Base de connaissances", "Contact"},
	valueobject.LanguageEnglish: {"Business facts", "Knowledge base", "Contact"},
}

// PersonaProvider supplies operator-written persona text per language.
// Placeholders such as {name} and {email} are expanded from the business profile.
type PersonaProvider interface {
	Persona(language valueobject.Language) (string, bool)
}

// ComposeInstructions builds the system instruction block: persona, business
// facts and the retrieved knowledge as "title: content" lines.
func ComposeInstructions(language valueobject.Language, business BusinessProfile, knowledge []entity.KnowledgeItem) string {
	return ComposeInstructionsWithPersona(language, "", business, knowledge)
}

// ComposeInstructionsWithPersona is ComposeInstructions with persona
// replacing the built-in one when non-blank.
func ComposeInstructionsWithPersona(language valueobject.Language, persona string, business BusinessProfile, knowledge []entity.KnowledgeItem) string {
	if !language.IsSupported() {
		language = valueobject.DefaultLanguage
	}
	titles := sectionTitles[language]

	var sb strings.Builder
	if strings.TrimSpace(persona) != "" {
		sb.WriteString(business.Expand(strings.TrimSpace(persona)))
	} else {
		sb.WriteString(fmt.Sprintf(personas[language], business.Name))
	}
	sb.WriteString("\n\n## ")
	sb.WriteString(titles[0])
	sb.WriteString("\n")
	if p := business.Pricing[language]; p != "" {
		sb.WriteString("- " + p + "\n")
	}
	if g := business.Guarantee[language]; g != "" {
		sb.WriteString("- " + g + "\n")
	}

	sb.WriteString("\n## ")
	sb.WriteString(titles[2])
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("- Email: %s\n- Phone: %s\n- WhatsApp: %s\n", business.Email, business.Phone, business.WhatsApp))
	if business.Website != "" {
		sb.WriteString("- Web: " + business.Website + "\n")
	}

	if len(knowledge) > 0 {
		sb.WriteString("\n## ")
		sb.WriteString(titles[1])
		sb.WriteString("\n")
		for _, item := range knowledge {
			sb.WriteString(fmt.Sprintf("%s: %s\n", item.Title, strings.TrimSpace(item.Content)))
		}
	}
	return sb.String()
}
