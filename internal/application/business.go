package application

import (
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
)

// BusinessProfileFrom overlays configured business facts on the defaults.
// Blank settings keep the default value.
func BusinessProfileFrom(cfg config.BusinessConfig) service.BusinessProfile {
	p := service.DefaultBusinessProfile()

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Name, cfg.Name)
	set(&p.Email, cfg.Email)
	set(&p.Phone, cfg.Phone)
	set(&p.WhatsApp, cfg.WhatsApp)
	set(&p.Website, cfg.Website)

	overlay := func(m map[valueobject.Language]string, lang valueobject.Language, v string) {
		if v != "" {
			m[lang] = v
		}
	}
	overlay(p.Pricing, valueobject.LanguageFrench, cfg.PricingFR)
	overlay(p.Pricing, valueobject.LanguageEnglish, cfg.PricingEN)
	overlay(p.Guarantee, valueobject.LanguageFrench, cfg.GuaranteeFR)
	overlay(p.Guarantee, valueobject.LanguageEnglish, cfg.GuaranteeEN)
	return p
}
