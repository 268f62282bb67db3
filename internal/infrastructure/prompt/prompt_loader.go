package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
)

// PersonaFile is one operator-written persona loaded from a .md file with
// optional YAML frontmatter.
type PersonaFile struct {
	Language valueobject.Language
	Priority int    // higher wins when two files target the same language
	Content  string // markdown body
	FilePath string
}

type frontmatter struct {
	Language string `yaml:"language"`
	Priority int    `yaml:"priority"`
}

// ParsePersonaFile reads a persona file.
//
// Expected format:
//
//	---
//	language: fr
//	priority: 10
//	---
//	Tu es l'assistant de {name}...
//
// Without frontmatter the language comes from the file name: persona.en.md
// or en.md.
func ParsePersonaFile(path string) (*PersonaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return ParsePersona(path, string(data))
}

// ParsePersona parses persona content; path is used for naming only.
func ParsePersona(path, content string) (*PersonaFile, error) {
	var fm frontmatter
	body := content

	content = strings.TrimPrefix(content, "\ufeff")
	if strings.HasPrefix(content, "---") {
		lines := strings.Split(content, "\n")
		closing := -1
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				closing = i
				break
			}
		}
		if closing == -1 {
			return nil, fmt.Errorf("unclosed YAML frontmatter in %s", path)
		}
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:closing], "\n")), &fm); err != nil {
			return nil, fmt.Errorf("invalid frontmatter in %s: %w", path, err)
		}
		body = strings.Join(lines[closing+1:], "\n")
	}

	lang := fm.Language
	if lang == "" {
		lang = languageFromName(path)
	}
	language := valueobject.Language(strings.ToLower(strings.TrimSpace(lang)))
	if !language.IsSupported() {
		return nil, fmt.Errorf("%s: unsupported or missing language %q", path, lang)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%s: empty persona", path)
	}

	return &PersonaFile{
		Language: language,
		Priority: fm.Priority,
		Content:  body,
		FilePath: path,
	}, nil
}

// languageFromName returns "en" for "persona.en.md" and "en.md".
func languageFromName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
