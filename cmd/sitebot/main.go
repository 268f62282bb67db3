package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/application"
	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
	"github.com/ngoclaw/sitebot/internal/infrastructure/knowledge"
	"github.com/ngoclaw/sitebot/internal/infrastructure/logger"
	"github.com/ngoclaw/sitebot/internal/interfaces/cli"
)

const appName = "sitebot"

func main() {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "sitebot — bilingual support chatbot for small business websites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "配置文件路径 (默认按层级查找)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP / WebSocket 服务",
		RunE:  runServe,
	}

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "本地交互式对话",
		Args:  cobra.ArbitraryArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().StringP("session", "s", "", "会话 ID")

	askCmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "发送单条消息并输出回复",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().StringP("session", "s", "", "会话 ID")
	askCmd.Flags().Bool("json", false, "以 JSON 输出完整结果")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "导入知识库 YAML",
		RunE:  runSeed,
	}
	seedCmd.Flags().StringP("file", "f", "", "知识库文件 (默认使用配置中的 knowledge.seed_file)")
	seedCmd.Flags().Bool("dry-run", false, "只校验文件，不写入")

	rootCmd.AddCommand(serveCmd, chatCmd, askCmd, seedCmd,
		&cobra.Command{
			Use:   "init",
			Short: "生成 ~/.sitebot 默认配置与知识库",
			RunE:  runInit,
		},
		&cobra.Command{
			Use:   "doctor",
			Short: "环境诊断",
			RunE:  runDoctor,
		},
		&cobra.Command{
			Use:   "version",
			Short: "显示版本",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s %s\n", appName, application.Version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// quietLogger keeps interactive output clean.
func quietLogger() (*zap.Logger, error) {
	return logger.NewLogger(logger.Config{
		Level:      "error",
		Format:     "console",
		OutputPath: "stderr",
	})
}

// ─── Server Mode ───

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	if err := config.Bootstrap(log); err != nil {
		log.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	log.Info("Starting sitebot",
		zap.String("version", application.Version),
		zap.String("address", cfg.Server.Addr()),
		zap.String("database", cfg.Database.Type),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", zap.Error(err))
		return err
	}
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return app.Stop(shutdownCtx)
}

// ─── Local Chat ───

func newCLIApp(cmd *cobra.Command) (*application.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := quietLogger()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	app, err := application.NewAppCLI(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("初始化失败: %w", err)
	}
	if _, err := app.SeedKnowledge(cmd.Context(), ""); err != nil {
		log.Warn("Knowledge seed failed (non-fatal)", zap.Error(err))
	}
	return app, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := newCLIApp(cmd)
	if err != nil {
		return err
	}
	defer app.Stop(context.Background())

	session, _ := cmd.Flags().GetString("session")
	return cli.RunREPL(app.ProcessMessageUseCase(), cli.REPLConfig{
		Banner: cli.BannerInfo{
			Version:   application.Version,
			Business:  app.Business().Name,
			Model:     app.AppConfig().LLM.Model,
			Providers: app.ProviderNames(cmd.Context()),
		},
		SessionID:  session,
		InitPrompt: strings.Join(args, " "),
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, err := newCLIApp(cmd)
	if err != nil {
		return err
	}
	defer app.Stop(context.Background())

	session, _ := cmd.Flags().GetString("session")
	if session == "" {
		session = cli.NewSessionID()
	}

	start := time.Now()
	res := app.ProcessMessageUseCase().Execute(cmd.Context(), usecase.ProcessMessageInput{
		UserMessage: strings.Join(args, " "),
		SessionID:   session,
		Origin:      "cli",
	})

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(os.Stdout, res)
	}
	fmt.Println(cli.NewRenderer(0).RenderReply(res, time.Since(start)))
	return nil
}

// ─── Knowledge ───

func runSeed(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if dryRun {
		if file == "" {
			return fmt.Errorf("--dry-run requires --file")
		}
		items, err := knowledge.LoadSeedFile(file)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: %d items valid\n", file, len(items))
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := quietLogger()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	app, err := application.NewAppCLI(cfg, log)
	if err != nil {
		return err
	}
	defer app.Stop(context.Background())

	n, err := app.SeedKnowledge(cmd.Context(), file)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d knowledge items imported\n", n)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	log, err := quietLogger()
	if err != nil {
		return err
	}
	if err := config.Bootstrap(log); err != nil {
		return err
	}
	fmt.Printf("✓ %s\n", config.HomeDir())
	return nil
}
