package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngoclaw/sitebot/internal/application"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
	"github.com/ngoclaw/sitebot/internal/infrastructure/knowledge"
	"github.com/ngoclaw/sitebot/internal/infrastructure/prompt"
)

type check struct {
	name string
	run  func() (string, bool)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("◇ sitebot doctor %s\n\n", application.Version)

	cfg, cfgErr := loadConfig(cmd)

	checks := []check{
		{"配置", func() (string, bool) {
			if cfgErr != nil {
				return cfgErr.Error(), false
			}
			if err := cfg.Validate(); err != nil {
				return err.Error(), false
			}
			return fmt.Sprintf("%s (%s)", cfg.Server.Addr(), cfg.Database.Type), true
		}},
		{"配置目录", func() (string, bool) {
			path := filepath.Join(config.HomeDir(), "config.yaml")
			if _, err := os.Stat(path); err != nil {
				return "未找到 " + path + "，运行 sitebot init", false
			}
			return path, true
		}},
		{"知识库", func() (string, bool) {
			if cfgErr != nil || cfg.Knowledge.SeedFile == "" {
				return "未配置 knowledge.seed_file", true
			}
			items, err := knowledge.LoadSeedFile(cfg.Knowledge.SeedFile)
			if err != nil {
				return err.Error(), false
			}
			return fmt.Sprintf("%d items", len(items)), true
		}},
		{"人设", func() (string, bool) {
			dir := config.DefaultPersonaDir()
			if cfgErr == nil && cfg.LLM.PersonaDir != "" {
				dir = cfg.LLM.PersonaDir
			}
			log, err := quietLogger()
			if err != nil {
				return err.Error(), false
			}
			store := prompt.NewPersonaStore(dir, log)
			if err := store.Load(); err != nil {
				return err.Error(), false
			}
			if langs := store.Languages(); len(langs) > 0 {
				return fmt.Sprintf("%v override(s) in %s", langs, dir), true
			}
			return "内置人设", true
		}},
		{"LLM", func() (string, bool) {
			if cfgErr != nil {
				return "跳过", false
			}
			return checkProviders(cmd.Context(), cfg)
		}},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.run()
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("所有检查通过 ✓")
	} else {
		fmt.Println("存在问题, 请检查上方标记")
	}
	return nil
}

func checkProviders(ctx context.Context, cfg *config.Config) (string, bool) {
	if !cfg.LLM.Enabled {
		return "已禁用 (仅知识库与固定回复)", true
	}
	log, err := quietLogger()
	if err != nil {
		return err.Error(), false
	}
	probe := *cfg
	probe.Database = config.DatabaseConfig{Type: "memory"}
	app, err := application.NewAppCLI(&probe, log)
	if err != nil {
		return err.Error(), false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	names := app.ProviderNames(ctx)
	if len(names) == 0 {
		return "未配置可用 provider", false
	}
	return fmt.Sprintf("%v", names), true
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
