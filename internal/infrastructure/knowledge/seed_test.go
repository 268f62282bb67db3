package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/entity"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
)

const sampleSeed = `
items:
  - title: Tarifs
    language: fr
    category: pricing
    content: Site vitrine à partir de 590 €.
    keywords: [prix, tarif]
    confidence: 0.9
  - title: Old offer
    language: EN
    content: Retired.
    active: false
`

func TestParseSeed(t *testing.T) {
	items, err := ParseSeed([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("ParseSeed failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Language != valueobject.LanguageFrench || !first.Active || first.ConfidenceOr(0) != 0.9 {
		t.Errorf("unexpected first item: %+v", first)
	}
	if len(first.Keywords) != 2 {
		t.Errorf("expected 2 keywords, got %v", first.Keywords)
	}

	second := items[1]
	if second.Language != valueobject.LanguageEnglish {
		t.Errorf("language should be case-insensitive, got %s", second.Language)
	}
	if second.Active {
		t.Error("explicit active: false must be honoured")
	}
	if second.Confidence != nil {
		t.Error("missing confidence should stay unset")
	}
}

func TestParseSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "items: [\n"},
		{"unknown language", "items:\n  - {title: a, content: b, language: de}\n"},
		{"missing content", "items:\n  - {title: a, language: fr}\n"},
		{"confidence out of range", "items:\n  - {title: a, content: b, language: fr, confidence: 1.5}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

type recordingRepo struct {
	items []entity.KnowledgeItem
	err   error
}

func (r *recordingRepo) Search(ctx context.Context, query string, language valueobject.Language, limit int) ([]entity.KnowledgeItem, error) {
	return nil, nil
}

func (r *recordingRepo) Upsert(ctx context.Context, item entity.KnowledgeItem) error {
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, item)
	return nil
}

func TestLoadSeedFileAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	items, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}

	repo := &recordingRepo{}
	n, err := Seed(context.Background(), repo, items, zap.NewNop())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != 2 || len(repo.items) != 2 {
		t.Errorf("expected 2 upserts, got %d", n)
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSeed_StopsOnError(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	items, _ := ParseSeed([]byte(sampleSeed))

	n, err := Seed(context.Background(), repo, items, zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 0 {
		t.Errorf("expected 0 written, got %d", n)
	}
}

func TestBootstrappedSeedIsValid(t *testing.T) {
	root := t.TempDir()
	if err := config.BootstrapAt(root, zap.NewNop()); err != nil {
		t.Fatalf("BootstrapAt failed: %v", err)
	}
	items, err := LoadSeedFile(filepath.Join(root, "knowledge.yaml"))
	if err != nil {
		t.Fatalf("default seed does not parse: %v", err)
	}
	langs := map[valueobject.Language]int{}
	for _, it := range items {
		langs[it.Language]++
	}
	if langs[valueobject.LanguageFrench] == 0 || langs[valueobject.LanguageEnglish] == 0 {
		t.Errorf("default seed should cover both languages, got %v", langs)
	}
}
