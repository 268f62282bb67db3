package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
)

const (
	reset    = "\033[0m"
	cyanBold = "\033[96m\033[1m"
	dimText  = "\033[90m"
	clearLn  = "\033[2K\r"
)

// Braille spinner frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Processor runs one chat turn.
type Processor interface {
	Execute(ctx context.Context, in usecase.ProcessMessageInput) *usecase.ProcessMessageResult
}

// NewSessionID mints a console session id.
func NewSessionID() string {
	return "cli-" + uuid.NewString()[:8]
}

// Console routes console lines to slash commands or the chat pipeline.
type Console struct {
	processor Processor
	renderer  *Renderer
	out       io.Writer
	sessionID string
	spinner   bool
}

// NewConsole creates a console bound to sessionID.
func NewConsole(processor Processor, renderer *Renderer, out io.Writer, sessionID string) *Console {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &Console{
		processor: processor,
		renderer:  renderer,
		out:       out,
		sessionID: sessionID,
	}
}

// SessionID returns the current session.
func (c *Console) SessionID() string {
	return c.sessionID
}

// Handle processes one input line and reports whether the console should exit.
func (c *Console) Handle(ctx context.Context, input string) (quit bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	if cmd := ParseSlashCommand(input); cmd != nil {
		result := ExecuteCommand(cmd, c.sessionID, NewSessionID)
		if result.NewSession != "" {
			c.sessionID = result.NewSession
		}
		if result.Output != "" {
			fmt.Fprintln(c.out, result.Output)
		}
		return result.IsQuit
	}

	var sp *asyncSpinner
	if c.spinner {
		sp = newSpinner()
		sp.Update("thinking...")
	}
	start := time.Now()
	res := c.processor.Execute(ctx, usecase.ProcessMessageInput{
		UserMessage: input,
		SessionID:   c.sessionID,
		Origin:      "cli",
	})
	if sp != nil {
		sp.Stop()
	}

	fmt.Fprintln(c.out, c.renderer.RenderReply(res, time.Since(start)))
	fmt.Fprintln(c.out)
	return false
}

// REPLConfig holds console runtime config
type REPLConfig struct {
	Banner     BannerInfo
	SessionID  string
	InitPrompt string
}

// RunREPL starts the interactive console loop
func RunREPL(processor Processor, cfg REPLConfig) error {
	w := termWidth()
	console := NewConsole(processor, NewRenderer(w), os.Stdout, cfg.SessionID)
	console.spinner = true

	cfg.Banner.SessionID = console.SessionID()
	fmt.Println(RenderBanner(cfg.Banner, w))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			rl.Close()
		}
	}()

	ctx := context.Background()
	if cfg.InitPrompt != "" && console.Handle(ctx, cfg.InitPrompt) {
		return nil
	}

	for {
		input, err := rl.Readline()
		if err != nil {
			// ErrInterrupt, io.EOF and closed terminals all end the session
			fmt.Printf("%s👋 再见%s\n", dimText, reset)
			return nil
		}
		if console.Handle(ctx, input) {
			fmt.Printf("%s👋 再见%s\n", dimText, reset)
			return nil
		}
	}
}

// ─── Braille Spinner ───

type asyncSpinner struct {
	mu      sync.Mutex
	running bool
	msg     string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newSpinner() *asyncSpinner {
	return &asyncSpinner{}
}

func (s *asyncSpinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.run()
	}
}

func (s *asyncSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	fmt.Print(clearLn)
}

func (s *asyncSpinner) run() {
	defer close(s.doneCh)

	frame := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.msg
			s.mu.Unlock()

			f := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Printf("%s%s%s %s%s%s", clearLn, cyanBold, f, dimText, msg, reset)
			frame++
		}
	}
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
