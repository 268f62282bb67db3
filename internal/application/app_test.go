package application

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: "test"},
		Database: config.DatabaseConfig{Type: "memory"},
		LLM:      config.LLMConfig{Enabled: false, HistoryLimit: 6, PersonaDir: t.TempDir()},
		Pipeline: config.PipelineConfig{
			KnowledgeLimit:   3,
			StoreTimeout:     time.Second,
			KnowledgeTimeout: time.Second,
			DirectKnowledge:  true,
		},
	}
}

func TestBusinessProfileFrom(t *testing.T) {
	p := BusinessProfileFrom(config.BusinessConfig{
		Email:     "hello@example.com",
		PricingEN: "From $500.",
	})
	def := BusinessProfileFrom(config.BusinessConfig{})

	if p.Email != "hello@example.com" {
		t.Fatalf("email = %q", p.Email)
	}
	if p.Phone != def.Phone || p.Name != def.Name {
		t.Fatal("blank settings should keep defaults")
	}
	if p.Pricing[valueobject.LanguageEnglish] != "From $500." {
		t.Fatalf("pricing en = %q", p.Pricing[valueobject.LanguageEnglish])
	}
	if p.Pricing[valueobject.LanguageFrench] != def.Pricing[valueobject.LanguageFrench] {
		t.Fatal("french pricing should keep default")
	}
}

func TestAppCLIAnswersWithoutLLM(t *testing.T) {
	app, err := NewAppCLI(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("NewAppCLI: %v", err)
	}

	res := app.ProcessMessageUseCase().Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "Hello, what are your prices?",
		SessionID:   "cli-test",
	})
	if strings.TrimSpace(res.Response) == "" {
		t.Fatal("empty response")
	}
	if res.Language != valueobject.LanguageEnglish {
		t.Fatalf("language = %q", res.Language)
	}
	if res.Source == valueobject.SourceAIGenerated {
		t.Fatal("LLM disabled but reply marked as generated")
	}
	if stats := app.Monitor().GetStats(); stats["messages_total"] == nil {
		t.Fatalf("pipeline metrics not recorded: %v", stats)
	}
}

func TestSeedKnowledgeFeedsDirectReplies(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "knowledge.yaml")
	data := `items:
  - title: Delivery time
    language: en
    category: process
    content: A showcase website is delivered in two weeks.
    keywords: [delivery, weeks, deadline]
`
	if err := os.WriteFile(seed, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.Knowledge.SeedFile = seed
	app, err := NewAppCLI(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAppCLI: %v", err)
	}

	n, err := app.SeedKnowledge(context.Background(), "")
	if err != nil || n != 1 {
		t.Fatalf("SeedKnowledge = %d, %v", n, err)
	}

	res := app.ProcessMessageUseCase().Execute(context.Background(), usecase.ProcessMessageInput{
		UserMessage: "What is the delivery deadline for a website?",
		SessionID:   "seed-test",
	})
	if res.Source != valueobject.SourceKnowledgeBase || res.KnowledgeUsed == 0 {
		t.Fatalf("expected knowledge reply, got %+v", res)
	}
	if !strings.Contains(res.Response, "two weeks") {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestNewAppServesHTTP(t *testing.T) {
	app, err := NewApp(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if app.httpServer == nil || app.hub == nil {
		t.Fatal("interfaces not initialised")
	}
}

func TestAppLoadsPersonaOverrides(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.LLM.PersonaDir, "persona.en.md"), []byte("You answer for {name}."), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewAppCLI(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAppCLI: %v", err)
	}
	if got, ok := app.Personas().Persona(valueobject.LanguageEnglish); !ok || got != "You answer for {name}." {
		t.Fatalf("persona = %q, %v", got, ok)
	}
}

func TestInitApplicationServicesReturnsTableErrors(t *testing.T) {
	cfg := testConfig(t)
	app := &App{config: cfg, logger: zap.NewNop()}
	if err := app.initRepositories(); err != nil {
		t.Fatal(err)
	}
	if err := app.initDomainServices(); err != nil {
		t.Fatal(err)
	}
	app.initInfrastructure()

	delete(app.tables.Canned[valueobject.LanguageEnglish], valueobject.IntentGeneral)
	if err := app.initApplicationServices(); err == nil {
		t.Fatal("malformed canned table must be reported as an error")
	}
}
