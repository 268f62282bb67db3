package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name
const AppName = "sitebot"

// HomeDir returns the user's configuration home: ~/.sitebot
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// DefaultSeedFile is the knowledge seed written next to the global config.
func DefaultSeedFile() string {
	return filepath.Join(HomeDir(), "knowledge.yaml")
}

// DefaultPersonaDir holds the operator persona overrides.
func DefaultPersonaDir() string {
	return filepath.Join(HomeDir(), "prompts")
}

// Bootstrap ensures ~/.sitebot exists with a default config and knowledge seed.
// Existing files are never overwritten.
func Bootstrap(logger *zap.Logger) error {
	return BootstrapAt(HomeDir(), logger)
}

// BootstrapAt is Bootstrap rooted at an arbitrary directory.
func BootstrapAt(root string, logger *zap.Logger) error {
	if err := os.MkdirAll(filepath.Join(root, "prompts"), 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"):                  defaultConfig,
		filepath.Join(root, "knowledge.yaml"):               defaultKnowledge,
		filepath.Join(root, "prompts", "README.md.example"): personaExample,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("Failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("Sitebot bootstrap complete",
			zap.String("home", root),
			zap.Int("files_created", created),
		)
	} else {
		logger.Debug("Sitebot home directory OK", zap.String("home", root))
	}

	return nil
}

const defaultConfig = `# Sitebot configuration / Configuration Sitebot
# Generated on first launch, edit freely.
# Environment variables override any key: SITEBOT_SERVER_PORT, SITEBOT_DATABASE_DSN, ...

server:
  host: 0.0.0.0
  port: 8080
  mode: release                # debug | release

database:
  type: sqlite                 # sqlite | postgres | memory
  dsn: sitebot.db              # file path (sqlite) or connection string (postgres)
  log_level: warn              # silent | error | warn | info

log:
  level: info                  # debug | info | warn | error
  format: json                 # json | console
  output: stdout

llm:
  enabled: false
  model: gpt-4o-mini
  temperature: 0.7
  max_tokens: 300
  history_limit: 6
  timeout: 15s
  persona_dir: ""              # *.md persona overrides, default ~/.sitebot/prompts
  providers: []
  # providers:
  #   - name: openai
  #     type: openai
  #     base_url: "https://api.openai.com/v1"
  #     api_key: "sk-..."
  #     models: ["gpt-4o-mini"]
  #     priority: 1
  #   - name: local
  #     type: ollama
  #     base_url: "http://localhost:11434"
  #     models: ["llama3.2"]
  #     priority: 2

pipeline:
  knowledge_limit: 3
  store_timeout: 3s
  knowledge_timeout: 3s
  direct_knowledge: true

# Empty values fall back to the built-in business profile.
business:
  name: ""
  email: ""
  phone: ""
  whatsapp: ""
  website: ""
  pricing_fr: ""
  pricing_en: ""
  guarantee_fr: ""
  guarantee_en: ""

knowledge:
  seed_file: ""                # e.g. ~/.sitebot/knowledge.yaml
`

const defaultKnowledge = `# Knowledge base seed, loaded with: sitebot seed --file knowledge.yaml
# Items are upserted by (language, title).
items:
  - title: Tarifs site vitrine
    language: fr
    category: pricing
    content: Un site vitrine démarre à 590 €, hébergement et nom de domaine inclus la première année.
    keywords: [prix, tarif, vitrine, coût]
    confidence: 0.95
  - title: Délais de réalisation
    language: fr
    category: services
    content: Comptez deux à trois semaines pour un site vitrine et quatre à six semaines pour une boutique en ligne.
    keywords: [délai, durée, semaines]
  - title: Maintenance et support
    language: fr
    category: technical
    content: Nos forfaits de maintenance couvrent les mises à jour, les sauvegardes et la correction des bugs.
    keywords: [maintenance, bug, panne, support]
  - title: Showcase website pricing
    language: en
    category: pricing
    content: A showcase website starts at €590, hosting and domain included for the first year.
    keywords: [price, pricing, cost, showcase]
    confidence: 0.95
  - title: Delivery times
    language: en
    category: services
    content: Expect two to three weeks for a showcase website and four to six weeks for an online store.
    keywords: [delay, delivery, weeks]
  - title: Maintenance and support
    language: en
    category: technical
    content: Maintenance plans cover updates, backups and bug fixes.
    keywords: [maintenance, bug, outage, support]
`

const personaExample = `---
language: fr
priority: 0
---
Rename to persona.fr.md (or persona.en.md with language: en) to replace the
built-in persona for that language. {name}, {email}, {phone}, {whatsapp}
and {website} are expanded. Changes apply without a restart.
`
