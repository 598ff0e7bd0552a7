package thread

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"threadbot/metrics"
	"threadbot/settings"
)

// MESSAGE_LIMIT is the page size for a full reload; only the most recent
// messages are fetched.
const MESSAGE_LIMIT = 100

// Reader is the read side of the settings store.
type Reader interface {
	Get() settings.Values
}

// Orchestrator owns the message list and the last run of one thread.
// Operations are serialized; readers may call the getters at any time.
type Orchestrator struct {
	settings     Reader
	newAPI       APIFactory
	log          zerolog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	pollInterval time.Duration

	// held for the whole of LoadMessages and AddMessage
	opMu sync.Mutex

	mu          sync.RWMutex
	messages    []DisplayMessage
	lastRun     *openai.Run
	busy        bool
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

type Option func(*Orchestrator)

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithPollInterval waits d between run status requests. The default is
// no wait.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = d
	}
}

func New(settings Reader, newAPI APIFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		settings:    settings,
		newAPI:      newAPI,
		log:         zerolog.Nop(),
		metrics:     metrics.New(prometheus.NewRegistry()),
		now:         time.Now,
		subscribers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LoadMessages replaces the message list with the most recent messages of
// the configured thread. Placeholders are dropped.
func (o *Orchestrator) LoadMessages(ctx context.Context) error {
	values := o.settings.Get()
	if isBlank(values.Credential) || isBlank(values.ThreadID) {
		return ErrNotInitialized
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()
	o.setBusy(true)
	defer o.setBusy(false)

	return o.reload(ctx, o.newAPI(values.Credential), values.ThreadID)
}

// AddMessage sends text as a user message, runs the assistant and waits
// for the run to finish. The message list is always reloaded before
// returning, whether or not the run succeeded.
func (o *Orchestrator) AddMessage(ctx context.Context, text string) error {
	_, err := o.Send(ctx, text)
	return err
}

// Send is AddMessage that also returns the assistant messages produced by
// its own run, oldest first. Later operations prepending to the list do
// not affect the reply.
func (o *Orchestrator) Send(ctx context.Context, text string) (reply []DisplayMessage, err error) {
	values := o.settings.Get()
	if isBlank(values.Credential) || isBlank(values.ThreadID) || isBlank(values.AssistantID) {
		return nil, ErrNotInitialized
	}

	o.opMu.Lock()
	defer o.opMu.Unlock()
	o.setBusy(true)
	defer o.setBusy(false)

	api := o.newAPI(values.Credential)
	log := o.log.With().Str("thread_id", values.ThreadID).Logger()

	var runID string
	defer func() {
		// the reload clears the placeholders even when ctx is already done
		reloadErr := o.reload(context.WithoutCancel(ctx), api, values.ThreadID)
		if reloadErr != nil {
			log.Error().Err(reloadErr).Msg("unable to reload messages")
			err = errors.Join(err, reloadErr)
			return
		}
		if runID != "" {
			reply = o.runMessages(runID)
		}
	}()

	o.prepend(newPending(RoleUser, text))

	_, err = api.CreateMessage(ctx, values.ThreadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		log.Error().Err(err).Msg("unable to create message")
		return nil, o.transportError(opCreateMessage, err)
	}
	o.metrics.MessagesSent.Inc()

	o.prepend(newPending(RoleAssistant, PendingReplyText))

	o.setLastRun(nil)
	run, err := api.CreateRun(ctx, values.ThreadID, openai.RunRequest{
		AssistantID: values.AssistantID,
	})
	if err != nil {
		log.Error().Err(err).Msg("unable to create run")
		return nil, o.transportError(opCreateRun, err)
	}
	o.metrics.RunsCreated.Inc()
	o.setLastRun(&run)
	runID = run.ID

	log.Info().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("created run")

	_, err = o.pollRun(ctx, api, values.ThreadID, run)
	return nil, err
}

// Messages returns a copy of the message list, most recent first.
func (o *Orchestrator) Messages() []DisplayMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]DisplayMessage(nil), o.messages...)
}

func (o *Orchestrator) MessageGroups() []MessageGroup {
	return GroupMessages(o.Messages())
}

// LastRun returns the most recently tracked run.
func (o *Orchestrator) LastRun() (openai.Run, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastRun == nil {
		return openai.Run{}, false
	}
	return *o.lastRun, true
}

func (o *Orchestrator) RunStatus() (openai.RunStatus, bool) {
	run, ok := o.LastRun()
	if !ok {
		return "", false
	}
	return run.Status, true
}

// RunDuration is the whole seconds elapsed since the tracked run started.
// It is zero when there is no run or the run has not started yet.
func (o *Orchestrator) RunDuration() time.Duration {
	run, ok := o.LastRun()
	if !ok || run.StartedAt == nil || *run.StartedAt == 0 {
		return 0
	}
	return time.Duration(o.now().Unix()-*run.StartedAt) * time.Second
}

// Busy reports whether an operation is in flight. Front ends use it to
// disable resubmission.
func (o *Orchestrator) Busy() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.busy
}

// Subscribe registers fn to be called after every state change. fn runs
// on the goroutine that made the change and must not call back into
// operations of the orchestrator.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

func (o *Orchestrator) reload(ctx context.Context, api AssistantAPI, threadID string) error {
	limit := MESSAGE_LIMIT
	list, err := api.ListMessage(ctx, threadID, &limit, nil, nil, nil, nil)
	if err != nil {
		return o.transportError(opListMessages, err)
	}
	o.metrics.Reloads.Inc()

	o.update(func() {
		o.messages = confirmAll(list.Messages)
	})
	return nil
}

// runMessages returns the confirmed assistant messages of runID, oldest
// first.
func (o *Orchestrator) runMessages(runID string) []DisplayMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var messages []DisplayMessage
	for i := len(o.messages) - 1; i >= 0; i-- {
		confirmed, ok := o.messages[i].(Confirmed)
		if !ok || confirmed.MessageRole() != RoleAssistant {
			continue
		}
		if confirmed.RunID != nil && *confirmed.RunID == runID {
			messages = append(messages, confirmed)
		}
	}
	return messages
}

func (o *Orchestrator) prepend(message DisplayMessage) {
	o.update(func() {
		o.messages = append([]DisplayMessage{message}, o.messages...)
	})
}

func (o *Orchestrator) setLastRun(run *openai.Run) {
	o.update(func() {
		o.lastRun = run
	})
}

func (o *Orchestrator) setBusy(busy bool) {
	o.update(func() {
		o.busy = busy
	})
}

// update applies fn under the write lock, then notifies subscribers with
// the resulting state.
func (o *Orchestrator) update(fn func()) {
	o.mu.Lock()
	fn()
	snapshot := o.snapshotLocked()
	subscribers := make([]func(Snapshot), 0, len(o.subscribers))
	for _, sub := range o.subscribers {
		subscribers = append(subscribers, sub)
	}
	o.mu.Unlock()

	for _, sub := range subscribers {
		sub(snapshot)
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		Messages: append([]DisplayMessage(nil), o.messages...),
		Busy:     o.busy,
	}
	if o.lastRun != nil {
		run := *o.lastRun
		snapshot.LastRun = &run
	}
	return snapshot
}

func (o *Orchestrator) transportError(op string, err error) error {
	o.metrics.APIErrors.WithLabelValues(op).Inc()
	return &TransportError{Op: op, Err: err}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
