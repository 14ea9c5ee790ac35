package proctor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quizvigil/proctor-agent/internal/backend"
	"github.com/rs/zerolog"
)

// State is the session lifecycle state.
type State string

const (
	StateSetup    State = "SETUP"
	StateActive   State = "ACTIVE"
	StateTerminal State = "TERMINAL"
)

// Common session errors.
var (
	ErrNotInSetup    = errors.New("session has already been started")
	ErrMediaRequired = errors.New("media monitor failed to start")
)

// Backend is the slice of the quiz backend client the session needs.
type Backend interface {
	ReportViolation(ctx context.Context, token, quizID, violationType string) (*backend.ViolationResult, error)
	Submit(ctx context.Context, token, quizID string, payload backend.SubmitPayload) (*backend.SubmitResult, error)
}

// Store persists attempt state keyed by (student, quiz) so a page reload or
// agent restart does not lose the attempt. All methods are best-effort from
// the session's view.
type Store interface {
	SaveAnswer(ctx context.Context, studentID, quizID, questionID, option string) error
	IncrViolations(ctx context.Context, studentID, quizID string) error
	SetStartedAt(ctx context.Context, studentID, quizID string, t time.Time) error
	Clear(ctx context.Context, studentID, quizID string) error
}

// Journal records violations for post-hoc audit.
type Journal interface {
	Record(ctx context.Context, sessionID, quizID string, v Violation)
}

// Policy holds the proctoring policy values. They are configuration, not
// embedded literals.
type Policy struct {
	// MaxWarnings is the violation count at which the session is failed
	// client-side when the backend is unreachable. The backend enforces the
	// same rule authoritatively; this copy is an offline safety net.
	MaxWarnings int
	// GraceDelay separates the termination notice from the forced submit so
	// the student can read why the attempt ended.
	GraceDelay time.Duration
	// TickInterval is the length of one countdown second. Production keeps
	// it at a real second; tests compress it.
	TickInterval time.Duration
	// UrgentThreshold is the remaining-seconds mark where the countdown
	// display turns urgent.
	UrgentThreshold int
}

// ResumeState carries a previously persisted attempt into a new session,
// used when the student reconnects after an agent restart. The backend
// attempt is already registered, so Begin skips the registration sentinel.
type ResumeState struct {
	StartedAt      time.Time
	Answers        map[string]string
	ViolationCount int
}

// SessionParams bundles the dependencies for a new session.
type SessionParams struct {
	QuizID          string
	Student         string
	Token           string
	Title           string
	DurationSeconds int
	Policy          Policy
	Backend         Backend
	Store           Store
	Journal         Journal
	Resume          *ResumeState
	Log             zerolog.Logger
}

// Session owns one proctored quiz attempt: the countdown timer, the answer
// map, the violation aggregator, and the one-shot submission. It moves
// through SETUP → ACTIVE → TERMINAL; the submitted flag guarantees the
// terminal submit executes at most once no matter how many triggers race.
type Session struct {
	ID      uuid.UUID
	QuizID  string
	Student string
	Title   string
	watcher *EnvWatcher

	token   string
	policy  Policy
	backend Backend
	store   Store
	journal Journal
	monitor *MediaMonitor
	log     zerolog.Logger

	mu             sync.Mutex
	state          State
	startedAt      time.Time
	remaining      int
	urgent         bool
	answers        map[string]string
	violationCount int

	submitted   atomic.Bool
	terminating atomic.Bool

	violations chan Violation
	events     chan Event
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession creates a session in SETUP state.
func NewSession(p SessionParams) *Session {
	id := uuid.New()
	s := &Session{
		ID:         id,
		QuizID:     p.QuizID,
		Student:    p.Student,
		Title:      p.Title,
		token:      p.Token,
		policy:     p.Policy,
		backend:    p.Backend,
		store:      p.Store,
		journal:    p.Journal,
		log:        p.Log.With().Str("component", "session").Str("session_id", id.String()).Logger(),
		state:      StateSetup,
		remaining:  p.DurationSeconds,
		answers:    make(map[string]string),
		violations: make(chan Violation, 16),
		events:     make(chan Event, 32),
		done:       make(chan struct{}),
	}
	if p.Resume != nil {
		s.startedAt = p.Resume.StartedAt
		s.violationCount = p.Resume.ViolationCount
		for k, v := range p.Resume.Answers {
			s.answers[k] = v
		}
	}
	s.watcher = &EnvWatcher{sess: s}
	return s
}

// SetMonitor attaches the media monitor. Must be called before Begin.
func (s *Session) SetMonitor(m *MediaMonitor) {
	s.monitor = m
}

// Begin moves the session from SETUP to ACTIVE: starts the media monitor,
// registers the attempt with the backend, records the start time, and starts
// the countdown. Media failure aborts the start and is not retried.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateSetup {
		s.mu.Unlock()
		return ErrNotInSetup
	}
	s.mu.Unlock()

	if s.monitor != nil {
		if err := s.monitor.Start(); err != nil {
			return errors.Join(ErrMediaRequired, err)
		}
	}

	// A resumed session keeps its original start time and is already
	// registered with the backend.
	resumed := !s.startedAt.IsZero()

	if !resumed {
		now := time.Now()

		// Register the attempt. The backend creates the IN_PROGRESS record
		// on this sentinel and does not count it as a violation.
		if _, err := s.backend.ReportViolation(ctx, s.token, s.QuizID, backend.ViolationTypeInit); err != nil {
			s.log.Warn().Err(err).Msg("Attempt registration failed, continuing")
		}

		if s.store != nil {
			if err := s.store.SetStartedAt(ctx, s.Student, s.QuizID, now); err != nil {
				s.log.Warn().Err(err).Msg("Failed to persist start time")
			}
		}

		s.startedAt = now
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(runCtx)

	s.log.Info().Str("quiz_id", s.QuizID).Int("duration_seconds", s.remaining).Msg("Session active")
	return nil
}

// run is the session's single event loop: countdown ticks and violation
// deliveries interleave here, never in parallel.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.policy.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		case v := <-s.violations:
			s.handleViolation(v)
		}
	}
}

// Events is the stream of UI notifications for this session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Signal feeds a raw environment signal to the watcher.
func (s *Session) Signal(sig Signal) {
	s.watcher.Observe(sig)
}

// Active reports whether the session still accepts violations and answers.
func (s *Session) Active() bool {
	if s.submitted.Load() || s.terminating.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// AddViolation delivers a violation to the aggregator. Violations arriving
// after termination are dropped.
func (s *Session) AddViolation(v Violation) {
	if !s.Active() {
		return
	}
	select {
	case s.violations <- v:
	default:
		s.log.Warn().Str("type", string(v.Type)).Msg("Violation queue full, dropping")
	}
}

// SetAnswer records a chosen option and writes it through to the store.
func (s *Session) SetAnswer(ctx context.Context, questionID, option string) {
	if !s.Active() {
		return
	}
	s.mu.Lock()
	s.answers[questionID] = option
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveAnswer(ctx, s.Student, s.QuizID, questionID, option); err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("Answer autosave failed")
		}
	}
}

// Snapshot is a point-in-time view of the session for reload/recovery.
type Snapshot struct {
	SessionID        string            `json:"session_id"`
	QuizID           string            `json:"quiz_id"`
	Title            string            `json:"title"`
	State            State             `json:"state"`
	StartedAt        time.Time         `json:"started_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
	ViolationCount   int               `json:"violation_count"`
	Answers          map[string]string `json:"answers"`
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return Snapshot{
		SessionID:        s.ID.String(),
		QuizID:           s.QuizID,
		Title:            s.Title,
		State:            s.state,
		StartedAt:        s.startedAt,
		RemainingSeconds: s.remaining,
		ViolationCount:   s.violationCount,
		Answers:          answers,
	}
}

// SubmitByUser performs the explicit, user-confirmed submission.
func (s *Session) SubmitByUser() {
	go s.finalize(false)
}

// tick advances the countdown by one second.
func (s *Session) tick() {
	if s.submitted.Load() || s.terminating.Load() {
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.remaining--
	rem := s.remaining
	urgentNow := !s.urgent && rem > 0 && rem <= s.policy.UrgentThreshold
	if urgentNow {
		s.urgent = true
	}
	s.mu.Unlock()

	if urgentNow {
		s.emit(Event{Kind: EventUrgent, RemainingSeconds: rem})
	}
	if rem <= 0 {
		s.log.Info().Msg("Countdown expired, submitting")
		s.finalize(false)
	}
}

// handleViolation is the aggregator: count, journal, then resolve against
// the backend without blocking the event loop.
func (s *Session) handleViolation(v Violation) {
	if s.submitted.Load() || s.terminating.Load() {
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.violationCount++
	count := s.violationCount
	s.mu.Unlock()

	s.log.Warn().Str("type", string(v.Type)).Int("count", count).Msg("Violation recorded")

	ctx := context.Background()
	if s.journal != nil {
		s.journal.Record(ctx, s.ID.String(), s.QuizID, v)
	}
	if s.store != nil {
		if err := s.store.IncrViolations(ctx, s.Student, s.QuizID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist violation count")
		}
	}

	go s.resolveViolation(v, count)
}

// resolveViolation reports the violation and decides fail-or-warn. The
// backend is authoritative when reachable; the local threshold is only the
// offline fallback.
func (s *Session) resolveViolation(v Violation, count int) {
	res, err := s.backend.ReportViolation(context.Background(), s.token, s.QuizID, string(v.Type))

	if s.submitted.Load() || s.terminating.Load() {
		return
	}

	if err != nil {
		s.log.Warn().Err(err).Msg("Violation report failed, applying offline policy")
		if v.Type == ViolationTabSwitch || count >= s.policy.MaxWarnings {
			s.ForceFail("Connection lost. The quiz was terminated due to a proctoring violation.")
			return
		}
		s.emit(Event{Kind: EventWarning, Message: v.Message, WarningsLeft: 1})
		return
	}

	if res.Status == backend.StatusFailed {
		s.ForceFail("The quiz was terminated: the violation limit has been reached.")
		return
	}

	warningsLeft := s.policy.MaxWarnings - count
	if warningsLeft > 0 {
		s.emit(Event{Kind: EventWarning, Message: v.Message, WarningsLeft: warningsLeft})
		return
	}

	s.emit(Event{Kind: EventFinalWarning, Message: v.Message})
	s.ForceFail("The quiz was terminated: no warnings remain.")
}

// ForceFail shows the blocking termination notice, then submits with
// force_fail after the grace delay. Only the first call has any effect.
func (s *Session) ForceFail(message string) {
	if s.submitted.Load() {
		return
	}
	if !s.terminating.CompareAndSwap(false, true) {
		return
	}

	s.log.Info().Str("reason", message).Msg("Session force-failed")
	s.emit(Event{Kind: EventTerminated, Message: message})

	time.AfterFunc(s.policy.GraceDelay, func() {
		s.finalize(true)
	})
}

// handleUnload fires the best-effort force-fail submission while the page
// is unloading. Fire-and-forget; no confirmation is awaited.
func (s *Session) handleUnload() {
	if s.journal != nil {
		s.journal.Record(context.Background(), s.ID.String(), s.QuizID, NewViolation(ViolationUnload))
	}
	go s.finalize(true)
}

// finalize performs the single terminal submission. All terminal triggers
// (timer expiry, explicit submit, forced fail, unload) converge here; the
// CAS on submitted makes later entrants no-ops.
func (s *Session) finalize(forceFail bool) {
	if !s.submitted.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}

	s.mu.Lock()
	s.state = StateTerminal
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	startedAt := s.startedAt
	count := s.violationCount
	s.mu.Unlock()

	payload := backend.SubmitPayload{
		Answers:   answers,
		StartedAt: startedAt.UTC().Format(time.RFC3339),
		ForceFail: forceFail,
	}

	res, err := s.backend.Submit(context.Background(), s.token, s.QuizID, payload)
	if err != nil {
		// The user must always reach a terminal screen: fabricate a failed
		// result view from local state.
		s.log.Error().Err(err).Msg("Submission failed, showing synthetic result")
		res = &backend.SubmitResult{
			Score:          0,
			Status:         backend.StatusFailed,
			ViolationCount: count,
		}
	} else {
		s.log.Info().Int("score", res.Score).Str("status", res.Status).Bool("force_fail", forceFail).Msg("Attempt submitted")
	}

	s.emit(Event{Kind: EventResult, Result: res})

	if s.store != nil {
		if err := s.store.Clear(context.Background(), s.Student, s.QuizID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear session state")
		}
	}
}

// Close releases session resources without submitting. Used when the agent
// shuts down or the session is evicted.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}
}

// Done is closed when the session event loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// emit pushes an event to the UI stream without ever blocking the event loop.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn().Str("kind", string(e.Kind)).Msg("Event buffer full, dropping")
	}
}

// Registry tracks live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Add registers a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Get returns the session with the given ID, or nil.
func (r *Registry) Get(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// ActiveFor returns the unsubmitted session for a student's quiz attempt,
// or nil. A session in its grace window still counts: only a completed
// submission frees the attempt for a new start.
func (r *Registry) ActiveFor(student, quizID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Student == student && s.QuizID == quizID && !s.submitted.Load() {
			return s
		}
	}
	return nil
}

// Remove drops a session from the registry.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// CloseAll releases every live session. Called on agent shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Close()
	}
}
