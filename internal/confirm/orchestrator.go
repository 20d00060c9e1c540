package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/purge"
	"github.com/google/uuid"
)

type entry struct {
	prompt Prompt
	timer  *time.Timer
	// view is set once Show returns; ready is closed after that.
	view  View
	ready chan struct{}
}

// Orchestrator tracks pending prompts.
type Orchestrator struct {
	client    purge.Client
	purger    Purger
	presenter Presenter
	timeout   time.Duration
	logger    *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	prompts map[string]*entry
}

// NewOrchestrator creates an orchestrator. A non-positive timeout uses
// DefaultTimeout.
func NewOrchestrator(client purge.Client, purger Purger, presenter Presenter, timeout time.Duration, log *logger.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		client:    client,
		purger:    purger,
		presenter: presenter,
		timeout:   timeout,
		logger:    log.Component("confirm"),
		now:       time.Now,
		prompts:   make(map[string]*entry),
	}
}

// Open shows a prompt for req and arms its expiry timer.
func (o *Orchestrator) Open(ctx context.Context, req Request) (*Prompt, error) {
	if req.RequesterID == "" || req.TargetUserID == "" {
		return nil, fmt.Errorf("requester and target user are required")
	}
	if req.GuildID == "" && req.ChannelID == "" {
		return nil, fmt.Errorf("a guild or a channel is required")
	}

	p := Prompt{
		ID:      uuid.NewString(),
		Request: req,
		State:   StatePending,
	}
	e := &entry{ready: make(chan struct{})}

	// Registered before the prompt is shown so a button press that races
	// Show finds it.
	o.mu.Lock()
	p.CreatedAt = o.now()
	p.ExpiresAt = p.CreatedAt.Add(o.timeout)
	e.prompt = p
	o.prompts[p.ID] = e
	e.timer = time.AfterFunc(o.timeout, func() { o.expire(p.ID) })
	o.mu.Unlock()

	view, err := o.presenter.Show(ctx, p)
	if err != nil {
		o.mu.Lock()
		if cur, ok := o.prompts[p.ID]; ok && cur == e {
			e.timer.Stop()
			delete(o.prompts, p.ID)
		}
		o.mu.Unlock()
		close(e.ready)
		return nil, fmt.Errorf("show prompt: %w", err)
	}
	e.view = view
	close(e.ready)

	o.logger.Info("purge prompt opened",
		logger.Field{Key: "prompt_id", Value: p.ID},
		logger.Field{Key: "requester_id", Value: req.RequesterID},
		logger.Field{Key: "target_user_id", Value: req.TargetUserID},
		logger.Field{Key: "channel_id", Value: req.ChannelID},
		logger.Field{Key: "guild_id", Value: req.GuildID})
	return &p, nil
}

// State returns the state of a prompt still tracked by the orchestrator.
// Finished prompts are forgotten and report false.
func (o *Orchestrator) State(promptID string) (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.prompts[promptID]
	if !ok {
		return "", false
	}
	return e.prompt.State, true
}

// Pending returns the number of open prompts.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

// Confirm moves the prompt to Confirmed and purges the target user's
// messages. Per-channel failures are in the summary and do not stop the
// remaining channels.
func (o *Orchestrator) Confirm(ctx context.Context, promptID, actorID string) (purge.Summary, error) {
	e, err := o.finish(promptID, actorID, StateConfirmed)
	if err != nil {
		return purge.Summary{}, err
	}
	p := e.prompt

	o.closeView(ctx, e, StateConfirmed)

	channels, err := o.targets(ctx, p)
	if err != nil {
		o.logger.Error("failed to resolve purge targets", err, logger.Field{Key: "prompt_id", Value: p.ID})
		return purge.Summary{}, err
	}

	summary := o.purger.PurgeAll(ctx, channels.resolved, purge.ByAuthor(p.TargetUserID))
	summary.Results = append(channels.failed, summary.Results...)

	o.logger.Info("manual purge finished",
		logger.Field{Key: "prompt_id", Value: p.ID},
		logger.Field{Key: "target_user_id", Value: p.TargetUserID},
		logger.Field{Key: "channels", Value: len(summary.Results)},
		logger.Field{Key: "deleted", Value: summary.Total},
		logger.Field{Key: "failures", Value: len(summary.Failures())})

	view := o.awaitView(ctx, e)
	if view == nil {
		return summary, nil
	}
	if err := view.Report(ctx, summary); err != nil {
		o.logger.Warn("failed to report purge summary",
			logger.Field{Key: "prompt_id", Value: p.ID},
			logger.Field{Key: "error", Value: err.Error()})
	}
	return summary, nil
}

// Cancel moves the prompt to Cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, promptID, actorID string) error {
	e, err := o.finish(promptID, actorID, StateCancelled)
	if err != nil {
		return err
	}
	o.closeView(ctx, e, StateCancelled)
	o.logger.Info("purge prompt cancelled", logger.Field{Key: "prompt_id", Value: promptID})
	return nil
}

func (o *Orchestrator) expire(promptID string) {
	e, err := o.finish(promptID, "", StateExpired)
	if err != nil {
		return
	}
	o.closeView(context.Background(), e, StateExpired)
	o.logger.Info("purge prompt expired", logger.Field{Key: "prompt_id", Value: promptID})
}

// finish performs the single terminal transition of a prompt. An empty
// actorID skips the requester check (timer expiry).
func (o *Orchestrator) finish(promptID, actorID string, to State) (*entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.prompts[promptID]
	if !ok || e.prompt.State != StatePending {
		return nil, ErrPromptClosed
	}
	if to != StateExpired && actorID != e.prompt.RequesterID {
		o.logger.Warn("prompt action by non-requester",
			logger.Field{Key: "prompt_id", Value: promptID},
			logger.Field{Key: "actor_id", Value: actorID})
		return nil, ErrNotRequester
	}

	e.prompt.State = to
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(o.prompts, promptID)
	return e, nil
}

// awaitView returns the prompt's view once Show has returned, or nil when
// Show failed or ctx ended first.
func (o *Orchestrator) awaitView(ctx context.Context, e *entry) View {
	select {
	case <-e.ready:
		return e.view
	case <-ctx.Done():
		return nil
	}
}

func (o *Orchestrator) closeView(ctx context.Context, e *entry, state State) {
	view := o.awaitView(ctx, e)
	if view == nil {
		return
	}
	if err := view.Close(ctx, state); err != nil {
		o.logger.Warn("failed to close prompt view",
			logger.Field{Key: "prompt_id", Value: e.prompt.ID},
			logger.Field{Key: "state", Value: string(state)},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

type targetSet struct {
	resolved []purge.Channel
	failed   []purge.Result
}

func (o *Orchestrator) targets(ctx context.Context, p Prompt) (targetSet, error) {
	if !p.AllChannels() {
		ch, err := o.client.Channel(ctx, p.ChannelID)
		if err != nil {
			return targetSet{failed: []purge.Result{{
				ChannelID: p.ChannelID,
				Err:       fmt.Errorf("resolve channel %s: %w", p.ChannelID, err),
			}}}, nil
		}
		return targetSet{resolved: []purge.Channel{ch}}, nil
	}

	channels, err := o.client.PurgeableChannels(ctx, p.GuildID)
	if err != nil {
		return targetSet{}, fmt.Errorf("list purgeable channels: %w", err)
	}
	return targetSet{resolved: channels}, nil
}
