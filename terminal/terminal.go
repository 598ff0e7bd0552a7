package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"threadbot/settings"
	"threadbot/thread"
)

const (
	CMD_SETTINGS = "/settings"
	CMD_CANCEL   = "/cancel"
	CMD_RELOAD   = "/reload"
	CMD_HISTORY  = "/history"
	CMD_STATUS   = "/status"
	CMD_HELP     = "/help"
	CMD_QUIT     = "/quit"
)

const HELP = `Type a message to send it to the assistant.
  /settings  change the credential, assistant id and thread id
  /reload    reload the thread from the server
  /history   print the whole conversation
  /status    show the last run status
  /quit      exit
`

// Thread is the orchestrator as seen by the terminal.
type Thread interface {
	LoadMessages(ctx context.Context) error
	AddMessage(ctx context.Context, text string) error
	MessageGroups() []thread.MessageGroup
	RunStatus() (openai.RunStatus, bool)
	RunDuration() time.Duration
	Subscribe(fn func(thread.Snapshot)) (unsubscribe func())
}

type Settings interface {
	Get() settings.Values
	Set(credential string, assistantID string, threadID string) error
	DisplaySettings() bool
	RequestDisplay()
	DismissDisplay()
}

type Terminal struct {
	in       io.Reader
	out      io.Writer
	thread   Thread
	settings Settings
	log      zerolog.Logger

	mu         sync.Mutex
	lastRunID  string
	lastStatus openai.RunStatus
}

func New(in io.Reader, out io.Writer, th Thread, s Settings, log zerolog.Logger) *Terminal {
	return &Terminal{
		in:       in,
		out:      out,
		thread:   th,
		settings: s,
		log:      log,
	}
}

var errQuit = errors.New("quit")

// Run reads lines until the input ends, /quit is entered or ctx is done.
func (t *Terminal) Run(ctx context.Context) error {
	unsubscribe := t.thread.Subscribe(t.onSnapshot)
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	lines := t.readLines(done)

	t.printf("Type a message (or %s for commands)\n", CMD_HELP)
	if !t.settings.DisplaySettings() {
		t.load(ctx)
	}

	for {
		if t.settings.DisplaySettings() {
			err := t.promptSettings(ctx, lines)
			if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			continue
		}

		line, err := next(ctx, lines)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := t.handleLine(ctx, line); errors.Is(err, errQuit) {
			return nil
		}
	}
}

func (t *Terminal) handleLine(ctx context.Context, line string) error {
	switch line {
	case "":
		return nil
	case CMD_QUIT:
		return errQuit
	case CMD_HELP:
		t.printf("%s", HELP)
	case CMD_SETTINGS:
		t.settings.RequestDisplay()
	case CMD_RELOAD:
		t.load(ctx)
	case CMD_HISTORY:
		t.printGroups(t.thread.MessageGroups())
	case CMD_STATUS:
		t.printStatus()
	default:
		t.send(ctx, line)
	}
	return nil
}

func (t *Terminal) load(ctx context.Context) {
	if err := t.thread.LoadMessages(ctx); err != nil {
		t.printError(err)
		return
	}
	t.printGroups(t.thread.MessageGroups())
}

func (t *Terminal) send(ctx context.Context, text string) {
	err := t.thread.AddMessage(ctx, text)
	if err != nil {
		t.printError(err)
		return
	}

	groups := t.thread.MessageGroups()
	if len(groups) > 0 && groups[0].Role == thread.RoleAssistant {
		t.printGroups(groups[:1])
	}
}

// promptSettings asks for all three values. An empty answer keeps the
// current value.
func (t *Terminal) promptSettings(ctx context.Context, lines <-chan string) error {
	current := t.settings.Get()
	prompts := []struct {
		label   string
		current string
	}{
		{"credential", current.Credential},
		{"assistant id", current.AssistantID},
		{"thread id", current.ThreadID},
	}

	answers := make([]string, len(prompts))
	for i, prompt := range prompts {
		t.printf("%s%s: ", prompt.label, hint(prompt.current, i == 0))
		line, err := next(ctx, lines)
		if err != nil {
			return err
		}
		switch line {
		case CMD_QUIT:
			return errQuit
		case CMD_CANCEL:
			t.settings.DismissDisplay()
			return nil
		case "":
			answers[i] = prompt.current
		default:
			answers[i] = line
		}
	}

	if err := t.settings.Set(answers[0], answers[1], answers[2]); err != nil {
		t.printError(err)
	}
	if !t.settings.DisplaySettings() {
		t.load(ctx)
	}
	return nil
}

func (t *Terminal) onSnapshot(snapshot thread.Snapshot) {
	if snapshot.LastRun == nil {
		return
	}

	t.mu.Lock()
	changed := snapshot.LastRun.ID != t.lastRunID || snapshot.LastRun.Status != t.lastStatus
	t.lastRunID = snapshot.LastRun.ID
	t.lastStatus = snapshot.LastRun.Status
	t.mu.Unlock()

	if changed {
		t.printf("[run %s] %s\n", snapshot.LastRun.ID, snapshot.LastRun.Status)
	}
}

// printGroups writes groups oldest first, the way a conversation reads.
func (t *Terminal) printGroups(groups []thread.MessageGroup) {
	var b strings.Builder
	for i := len(groups) - 1; i >= 0; i-- {
		group := groups[i]
		fmt.Fprintf(&b, "%s:\n", group.Role)
		for j := len(group.Messages) - 1; j >= 0; j-- {
			message := group.Messages[j]
			text := message.Text()
			if message.Kind() == thread.KindPending {
				text += " (pending)"
			}
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(text, "\n", "\n  "))
		}
	}
	t.printf("%s", b.String())
}

func (t *Terminal) printStatus() {
	status, ok := t.thread.RunStatus()
	if !ok {
		t.printf("no run yet\n")
		return
	}
	t.printf("run %s (%s)\n", status, t.thread.RunDuration())
}

func (t *Terminal) printError(err error) {
	t.log.Debug().Err(err).Msg("operation failed")
	if errors.Is(err, thread.ErrNotInitialized) {
		t.printf("settings are incomplete, use %s\n", CMD_SETTINGS)
		return
	}
	t.printf("error: %s\n", err)
}

func (t *Terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// readLines feeds trimmed input lines into a channel that is closed at the
// end of input or once done is closed. A read already blocked on the input
// finishes before the goroutine exits.
func (t *Terminal) readLines(done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			t.log.Error().Err(err).Msg("unable to read input")
		}
	}()
	return lines
}

func next(ctx context.Context, lines <-chan string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// hint shows the current value in brackets, masked for secrets.
func hint(value string, secret bool) string {
	if value == "" {
		return ""
	}
	if secret {
		if len(value) <= 4 {
			return " [****]"
		}
		return " [" + value[:3] + "..." + value[len(value)-2:] + "]"
	}
	return " [" + value + "]"
}
