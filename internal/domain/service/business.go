package service

import (
	"strings"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// BusinessProfile holds the facts quoted to visitors: contact channels,
// pricing and guarantees, per language where wording differs.
type BusinessProfile struct {
	Name      string
	Email     string
	Phone     string
	WhatsApp  string
	Website   string
	Pricing   map[valueobject.Language]string
	Guarantee map[valueobject.Language]string
}

// DefaultBusinessProfile returns placeholder facts used when none are configured.
func DefaultBusinessProfile() BusinessProfile {
	return BusinessProfile{
		Name:     "Studio Web Local",
		Email:    "contact@studioweblocal.fr",
		Phone:    "+33 1 23 45 67 89",
		WhatsApp: "+33 6 12 34 56 78",
		Website:  "https://studioweblocal.fr",
		Pricing: map[valueobject.Language]string{
			valueobject.LanguageFrench:  "Site vitrine à partir de 590 €, boutique en ligne à partir de 1 490 €, référencement à partir de 190 €/mois.",
			valueobject.LanguageEnglish: "Showcase website from €590, online store from €1,490, SEO from €190/month.",
		},
		Guarantee: map[valueobject.Language]string{
			valueobject.LanguageFrench:  "Devis gratuit sous 24 h, satisfait ou remboursé pendant 30 jours.",
			valueobject.LanguageEnglish: "Free quote within 24 hours, 30-day money-back guarantee.",
		},
	}
}

// ContactLine returns the canonical next step for a visitor.
func (b BusinessProfile) ContactLine(language valueobject.Language) string {
	if language == valueobject.LanguageEnglish {
		return "Contact us at " + b.Email + " or " + b.Phone + "."
	}
	return "Contactez-nous à " + b.Email + " ou au " + b.Phone + "."
}

// Expand replaces {name}, {email}, {phone}, {whatsapp} and {website}.
func (b BusinessProfile) Expand(template string) string {
	return strings.NewReplacer(
		"{name}", b.Name,
		"{email}", b.Email,
		"{phone}", b.Phone,
		"{whatsapp}", b.WhatsApp,
		"{website}", b.Website,
	).Replace(template)
}
