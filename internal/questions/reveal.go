package questions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/util"
)

// Chat lines published while the batched reveal runs.
const (
	ChatSender       = "assistant"
	ChatPreparing    = "📋 Questions are being prepared..."
	ChatAllReady     = "✅ All questions are ready! You can edit any question before generating the plan."
	firstBatchSize   = 5
	laterBatchSize   = 3
	defaultStepDelay = 300 * time.Millisecond
)

var chatProgress = []string{
	"📋 Continuing to prepare questions...",
	"📋 Almost there...",
	"📋 Finalizing questions...",
}

// RevealOptions controls reveal pacing.
type RevealOptions struct {
	Policy        string // config.RevealBatched or config.RevealSequential
	InitialDelay  time.Duration
	BatchInterval time.Duration
	StepInterval  time.Duration
	FinalDelay    time.Duration
}

// RevealOptionsFrom builds RevealOptions from the questions config section.
func RevealOptionsFrom(cfg config.QuestionsConfig) RevealOptions {
	return RevealOptions{
		Policy:        cfg.RevealPolicy,
		InitialDelay:  cfg.InitialDelay,
		BatchInterval: cfg.BatchInterval,
		StepInterval:  cfg.StepInterval,
		FinalDelay:    cfg.FinalDelay,
	}
}

// Revealer makes a selected question set visible over time. The visible set
// only grows, and Generating stays true until the last batch is shown.
type Revealer struct {
	questions []Question
	opts      RevealOptions
	bus       *event.Bus
	logger    *logging.Logger
	sleep     util.Sleeper

	mu         sync.RWMutex
	visible    map[string]bool
	order      []string
	generating bool

	once sync.Once
	done chan struct{}
}

// NewRevealer creates a Revealer for qs. bus and logger may be nil.
func NewRevealer(qs []Question, opts RevealOptions, bus *event.Bus, logger *logging.Logger) *Revealer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Revealer{
		questions:  qs,
		opts:       opts,
		bus:        bus,
		logger:     logger.WithPhase("questions"),
		sleep:      util.Sleep,
		visible:    make(map[string]bool, len(qs)),
		generating: true,
		done:       make(chan struct{}),
	}
}

// SetSleeper replaces the delay function, for tests.
func (r *Revealer) SetSleeper(s util.Sleeper) {
	r.sleep = s
}

// Start runs the reveal in a background goroutine tied to ctx.
func (r *Revealer) Start(ctx context.Context) {
	go func() { _ = r.Run(ctx) }()
}

// Run reveals every question and returns when done, or early with ctx.Err()
// if ctx is canceled. Run must only be called once.
func (r *Revealer) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.done) })

	var err error
	if r.opts.Policy == config.RevealSequential {
		err = r.runSequential(ctx)
	} else {
		err = r.runBatched(ctx)
	}
	if err != nil {
		r.logger.Debug("question reveal canceled", "visible", len(r.Visible()), "total", len(r.questions))
		return err
	}

	r.mu.Lock()
	r.generating = false
	r.mu.Unlock()

	r.publish(event.NewQuestionsRevealedEvent(nil, len(r.questions), len(r.questions), true))
	r.logger.Info("questions revealed", "total", len(r.questions), "policy", r.opts.Policy)
	return nil
}

func (r *Revealer) runSequential(ctx context.Context) error {
	step := r.opts.StepInterval
	if step == 0 {
		step = defaultStepDelay
	}
	for _, q := range r.questions {
		if err := r.sleep(ctx, step); err != nil {
			return err
		}
		r.reveal([]Question{q})
	}
	return nil
}

func (r *Revealer) runBatched(ctx context.Context) error {
	if err := r.sleep(ctx, r.opts.InitialDelay); err != nil {
		return err
	}
	first := r.questions[:min(firstBatchSize, len(r.questions))]
	r.reveal(first)
	if len(first) > 0 {
		r.chat(ChatPreparing)
	}

	for i := firstBatchSize; i < len(r.questions); i += laterBatchSize {
		if err := r.sleep(ctx, r.opts.BatchInterval); err != nil {
			return err
		}
		batch := r.questions[i:min(i+laterBatchSize, len(r.questions))]
		r.reveal(batch)
		r.chat(chatProgress[((i-firstBatchSize)/laterBatchSize)%len(chatProgress)])
	}

	if err := r.sleep(ctx, r.opts.FinalDelay); err != nil {
		return err
	}
	r.chat(ChatAllReady)
	return nil
}

func (r *Revealer) reveal(batch []Question) {
	ids := make([]string, 0, len(batch))
	r.mu.Lock()
	for _, q := range batch {
		if !r.visible[q.ID] {
			r.visible[q.ID] = true
			r.order = append(r.order, q.ID)
			ids = append(ids, q.ID)
		}
	}
	visible := len(r.order)
	r.mu.Unlock()

	r.publish(event.NewQuestionsRevealedEvent(ids, visible, len(r.questions), false))
}

func (r *Revealer) chat(msg string) {
	r.publish(event.NewChatMessageEvent(ChatSender, msg))
}

func (r *Revealer) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// Visible returns the ids revealed so far, in reveal order.
func (r *Revealer) Visible() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// IsVisible reports whether the question with id has been revealed.
func (r *Revealer) IsVisible(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible[id]
}

// Generating reports whether questions are still being revealed. Actions
// that submit answers must wait until it is false.
func (r *Revealer) Generating() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generating
}

// Done is closed when Run returns.
func (r *Revealer) Done() <-chan struct{} {
	return r.done
}

// Summary is the chat line announcing how many questions were selected.
func Summary(n int) string {
	return fmt.Sprintf("I've generated %d key questions covering the main decision points. Review and refine them as needed!", n)
}
