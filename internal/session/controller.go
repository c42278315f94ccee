package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

// Config tunes a controller. Zero values fall back to sensible defaults.
type Config struct {
	Mode             models.Mode
	Clock            Clock
	WarningThreshold time.Duration
	// Validate, when set, checks a fetched snapshot before it is used.
	Validate func(*models.AttemptSnapshot) error
	Logger   *slog.Logger
}

// TickResult describes what a single timer tick observed.
type TickResult struct {
	RemainingSeconds int
	Warning          bool
	// WarningStarted is true only on the first tick that entered the warning window.
	WarningStarted bool
	// Expired reports that the time budget is used up.
	Expired bool
	// Result is set when this tick completed the session through auto-submit.
	Result *models.SessionResult
}

// Controller drives one attempt through loading, active, submitting and completed.
// Every operation takes the same lock, so user events and timer ticks are applied one
// at a time. Network calls run outside the lock behind an in-flight guard.
type Controller struct {
	mu     sync.Mutex
	deps   Dependencies
	cfg    Config
	clock  Clock
	logger *slog.Logger

	attemptID   uint
	status      models.SessionStatus
	loading     bool
	session     *models.Session
	questions   []models.QuestionRef
	store       *AnswerStore
	cursor      *Cursor
	review      *Cursor
	timer       *Timer
	visitStart  time.Time
	inFlight    bool
	perQuestion map[uint]bool
	results     map[uint]models.QuestionResult
	warned      bool
	divergences []models.Divergence
	lastErr     error
	result      *models.SessionResult
}

func NewController(deps Dependencies, cfg Config) *Controller {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeExam
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		deps:        deps,
		cfg:         cfg,
		clock:       clock,
		logger:      logger.With("component", "session_controller"),
		status:      models.SessionLoading,
		perQuestion: make(map[uint]bool),
		results:     make(map[uint]models.QuestionResult),
	}
}

// Start loads the attempt and seeds the session. On failure the controller moves to
// the error state with no partial state and Start may be called again.
func (c *Controller) Start(ctx context.Context, attemptID uint) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.status != models.SessionLoading && !(c.status == models.SessionError && c.session == nil) {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.loading = true
	c.attemptID = attemptID
	c.status = models.SessionLoading
	c.mu.Unlock()

	snap, err := c.fetch(ctx, attemptID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.status = models.SessionError
		c.lastErr = &LoadError{AttemptID: attemptID, Err: err}
		c.logger.Warn("Failed to load session", "attempt_id", attemptID, "error", err)
		return c.lastErr
	}

	c.seed(snap)
	c.logger.Info("Session loaded",
		"attempt_id", attemptID,
		"mode", c.cfg.Mode,
		"questions", len(c.questions),
		"time_limit_seconds", c.timer.LimitSeconds(),
		"status", c.status)
	return nil
}

func (c *Controller) fetch(ctx context.Context, attemptID uint) (*models.AttemptSnapshot, error) {
	if c.deps.Fetcher == nil {
		return nil, errors.New("no session fetcher configured")
	}
	snap, err := c.deps.Fetcher.FetchSession(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidSnapshot)
	}
	if c.cfg.Validate != nil {
		if err := c.cfg.Validate(snap); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	if len(snap.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidSnapshot)
	}
	seen := make(map[uint]struct{}, len(snap.Questions))
	for _, q := range snap.Questions {
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question %d", ErrInvalidSnapshot, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return snap, nil
}

func (c *Controller) seed(snap *models.AttemptSnapshot) {
	questions := make([]models.QuestionRef, len(snap.Questions))
	copy(questions, snap.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})

	startedAt := snap.StartedAt
	if startedAt.IsZero() {
		startedAt = c.clock()
	}
	limit := snap.TimeLimitSeconds
	if c.cfg.Mode == models.ModePractice {
		limit = 0
	}

	c.questions = questions
	c.store = NewAnswerStore(questions)
	c.store.Seed(snap.PriorAnswers)
	c.cursor = NewCursor(len(questions), snap.CurrentIndex)
	c.timer = NewTimer(startedAt, limit, c.clock)
	if c.cfg.WarningThreshold > 0 {
		c.timer.SetWarningThreshold(c.cfg.WarningThreshold)
	}
	c.visitStart = c.clock()
	c.lastErr = nil
	c.session = &models.Session{
		ID:               snap.AttemptID,
		Mode:             c.cfg.Mode,
		QuestionRefs:     questions,
		TimeLimitSeconds: limit,
		StartedAt:        startedAt,
	}
	if snap.AttemptID != 0 {
		c.attemptID = snap.AttemptID
	}

	if snap.Status == models.AttemptStatusSubmitted {
		c.complete(&models.SessionResult{AttemptID: c.attemptID, CompletedAt: c.clock()})
		return
	}
	c.setStatus(models.SessionActive)
}

// Answer records an option for a question. It is a no-op outside the active state.
func (c *Controller) Answer(questionID uint, optionKey string) (models.AnswerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkMutable(questionID); err != nil {
		return models.AnswerRecord{}, err
	}
	if err := c.store.Set(questionID, optionKey); err != nil {
		return models.AnswerRecord{}, err
	}
	return c.store.Get(questionID), nil
}

func (c *Controller) Mark(questionID uint) (models.AnswerRecord, error) {
	return c.setMarked(questionID, true)
}

func (c *Controller) Unmark(questionID uint) (models.AnswerRecord, error) {
	return c.setMarked(questionID, false)
}

func (c *Controller) ToggleMark(questionID uint) (models.AnswerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkMarkable(questionID); err != nil {
		return models.AnswerRecord{}, err
	}
	if _, err := c.store.ToggleMark(questionID); err != nil {
		return models.AnswerRecord{}, err
	}
	return c.store.Get(questionID), nil
}

func (c *Controller) setMarked(questionID uint, marked bool) (models.AnswerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkMarkable(questionID); err != nil {
		return models.AnswerRecord{}, err
	}
	if err := c.store.SetMarked(questionID, marked); err != nil {
		return models.AnswerRecord{}, err
	}
	return c.store.Get(questionID), nil
}

func (c *Controller) checkMarkable(questionID uint) error {
	if c.status != models.SessionActive {
		return ErrNotActive
	}
	if !c.store.Has(questionID) {
		return ErrUnknownQuestion
	}
	if c.timer.OutOfTime() {
		return ErrTimeExpired
	}
	return nil
}

func (c *Controller) checkMutable(questionID uint) error {
	if err := c.checkMarkable(questionID); err != nil {
		return err
	}
	if _, done := c.results[questionID]; done {
		return ErrQuestionAlreadySubmitted
	}
	return nil
}

// Navigate jumps to index i. Out-of-range indexes leave the cursor where it is.
// Navigation works in every loaded state; after the session ends it moves a review
// cursor and the session cursor stays frozen.
func (c *Controller) Navigate(i int) (int, error) {
	return c.move(func(cur *Cursor) int { return cur.JumpTo(i) })
}

func (c *Controller) Next() (int, error) {
	return c.move((*Cursor).Next)
}

func (c *Controller) Prev() (int, error) {
	return c.move((*Cursor).Prev)
}

func (c *Controller) move(step func(*Cursor) int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0, ErrNotLoaded
	}
	if c.frozen() {
		return step(c.review), nil
	}
	if c.status == models.SessionActive {
		c.accrueTime()
	}
	return step(c.cursor), nil
}

// accrueTime credits whole seconds spent on the current question.
func (c *Controller) accrueTime() {
	if c.cursor.Total() == 0 {
		return
	}
	now := c.clock()
	secs := int(now.Sub(c.visitStart) / time.Second)
	if secs <= 0 {
		if now.Before(c.visitStart) {
			c.visitStart = now
		}
		return
	}
	c.store.AddTimeSpent(c.questions[c.cursor.Index()].ID, secs)
	c.visitStart = c.visitStart.Add(time.Duration(secs) * time.Second)
}

// RequestSubmit returns the confirmation summary without changing any state.
func (c *Controller) RequestSubmit() (models.SubmitSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.SubmitSummary{}, ErrNotLoaded
	}
	return Summarize(c.store, c.timer), nil
}

// ConfirmSubmit submits the session after the user confirmed the summary.
func (c *Controller) ConfirmSubmit(ctx context.Context) (*models.SessionResult, error) {
	return c.trySubmit(ctx, models.TriggerManual)
}

// Tick is driven by the periodic clock. The first tick that sees the budget exhausted while
// the session is active requests an auto-submit through the same guarded path as ConfirmSubmit.
func (c *Controller) Tick(ctx context.Context) (TickResult, error) {
	c.mu.Lock()
	if c.session == nil || c.frozen() {
		c.mu.Unlock()
		return TickResult{}, nil
	}
	res := TickResult{
		RemainingSeconds: c.timer.RemainingSeconds(),
		Warning:          c.timer.Warning(),
	}
	if res.Warning && !c.warned {
		c.warned = true
		res.WarningStarted = true
	}
	// The one-shot expiry is only consumed while active. If a manual submit is in
	// flight at the deadline and fails, the next tick still auto-submits once.
	fire := false
	if c.status == models.SessionActive {
		fire = c.timer.Tick()
	}
	res.Expired = c.timer.OutOfTime()
	c.mu.Unlock()

	if !fire || c.cfg.Mode != models.ModeExam {
		return res, nil
	}

	c.logger.Info("Session time expired, auto-submitting", "attempt_id", c.attemptID)
	result, err := c.trySubmit(ctx, models.TriggerTimeout)
	if err != nil {
		if errors.Is(err, ErrSubmitInFlight) || errors.Is(err, ErrNotActive) {
			return res, nil
		}
		return res, err
	}
	res.Result = result
	return res, nil
}

// trySubmit is the single entry point for bulk submission. Whichever caller sets the
// in-flight guard first proceeds; the others get ErrSubmitInFlight and change nothing.
func (c *Controller) trySubmit(ctx context.Context, trigger models.SubmitTrigger) (*models.SessionResult, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if c.cfg.Mode != models.ModeExam {
		c.mu.Unlock()
		return nil, ErrWrongMode
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if c.status != models.SessionActive {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	if c.deps.Submitter == nil {
		c.mu.Unlock()
		return nil, errors.New("no answer submitter configured")
	}
	c.inFlight = true
	c.setStatus(models.SessionSubmitting)
	payload := AssembleSubmission(c.attemptID, c.questions, c.store, c.timer)
	c.mu.Unlock()

	res, err := c.deps.Submitter.SubmitAnswers(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.setStatus(models.SessionActive)
		c.lastErr = &SubmitError{AttemptID: c.attemptID, Trigger: trigger, Err: err}
		c.logger.Warn("Submission failed, session remains active",
			"attempt_id", c.attemptID, "trigger", trigger, "error", err)
		return nil, c.lastErr
	}
	if res == nil || !res.Accepted {
		c.lastErr = &SubmitError{AttemptID: c.attemptID, Trigger: trigger, Rejected: true}
		c.review = c.cursor.Clone()
		c.setStatus(models.SessionError)
		c.logger.Error("Submission rejected", "attempt_id", c.attemptID, "trigger", trigger)
		return nil, c.lastErr
	}

	attemptID := res.AttemptID
	if attemptID == 0 {
		attemptID = c.attemptID
	}
	c.lastErr = nil
	c.complete(&models.SessionResult{AttemptID: attemptID, Trigger: trigger, CompletedAt: c.clock()})
	c.logger.Info("Session submitted",
		"attempt_id", attemptID,
		"trigger", trigger,
		"answers", len(payload.Answers),
		"total_time_spent", payload.TotalTimeSpent)
	return c.result, nil
}

// SubmitQuestion sends one practice answer. Each question has its own in-flight guard;
// the session completes once every question has a result.
func (c *Controller) SubmitQuestion(ctx context.Context, questionID uint) (*models.QuestionSubmitResult, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if c.cfg.Mode != models.ModePractice {
		c.mu.Unlock()
		return nil, ErrWrongMode
	}
	if err := c.checkMutable(questionID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.perQuestion[questionID] {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if c.deps.QuestionSubmitter == nil {
		c.mu.Unlock()
		return nil, errors.New("no question submitter configured")
	}
	if c.questions[c.cursor.Index()].ID == questionID {
		c.accrueTime()
	}
	rec := c.store.Get(questionID)
	if !rec.IsAnswered() {
		c.mu.Unlock()
		return nil, ErrEmptyAnswer
	}
	c.perQuestion[questionID] = true
	submission := models.QuestionSubmission{
		AttemptID:  c.attemptID,
		QuestionID: questionID,
		UserAnswer: rec.RawAnswer,
		TimeSpent:  rec.TimeSpentSeconds,
	}
	c.mu.Unlock()

	res, err := c.deps.QuestionSubmitter.SubmitQuestion(ctx, submission)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perQuestion, questionID)
	if err != nil {
		c.lastErr = &SubmitError{AttemptID: c.attemptID, QuestionID: questionID, Trigger: models.TriggerManual, Err: err}
		return nil, c.lastErr
	}
	if res == nil {
		c.lastErr = &SubmitError{AttemptID: c.attemptID, QuestionID: questionID, Trigger: models.TriggerManual, Rejected: true}
		return nil, c.lastErr
	}
	if c.status != models.SessionActive {
		return res, nil
	}

	result := res.Result
	result.QuestionID = questionID
	result.UserAnswer = submission.UserAnswer
	c.results[questionID] = result
	c.lastErr = nil

	if res.Completed || len(c.results) >= len(c.questions) {
		c.complete(&models.SessionResult{AttemptID: c.attemptID, Trigger: models.TriggerManual, CompletedAt: c.clock()})
		c.logger.Info("Practice session completed", "attempt_id", c.attemptID, "results", len(c.results))
	}
	out := *res
	out.Result = result
	return &out, nil
}

// Reconcile compares a locally cached checkpoint with the loaded server state. The
// server state is kept; every disagreement is recorded and returned.
func (c *Controller) Reconcile(local *models.Progress) []models.Divergence {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || local == nil {
		return nil
	}
	var found []models.Divergence
	for _, rec := range local.Answers {
		if !c.store.Has(rec.QuestionID) {
			continue
		}
		serverAnswer := c.store.Get(rec.QuestionID).RawAnswer
		localAnswer := rec.RawAnswer
		if q := c.questionByID(rec.QuestionID); q.Type == models.QuestionMultiple {
			localAnswer = EncodeOptions(ParseOptions(localAnswer))
		}
		if serverAnswer != localAnswer {
			found = append(found, models.Divergence{
				QuestionID:   rec.QuestionID,
				ServerAnswer: serverAnswer,
				LocalAnswer:  localAnswer,
			})
		}
	}
	c.divergences = append(c.divergences, found...)
	return found
}

// Checkpoint returns the progress worth caching locally. It does not change state.
func (c *Controller) Checkpoint() (models.Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.Progress{}, ErrNotLoaded
	}
	return models.Progress{
		AttemptID:      c.attemptID,
		CurrentIndex:   c.cursor.Index(),
		ElapsedSeconds: c.timer.ElapsedSeconds(),
		Answers:        c.store.Records(),
		SavedAt:        c.clock(),
	}, nil
}

// Snapshot returns an immutable copy of the session for presentation.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.Snapshot{
		AttemptID: c.attemptID,
		Mode:      c.cfg.Mode,
		Status:    c.status,
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	if c.session == nil {
		return snap
	}

	snap.CurrentIndex = c.cursor.Index()
	if c.frozen() {
		snap.CurrentIndex = c.review.Index()
	}
	snap.Questions = make([]models.QuestionRef, len(c.questions))
	copy(snap.Questions, c.questions)
	snap.Answers = c.store.Records()
	if len(c.results) > 0 {
		snap.Results = make(map[uint]models.QuestionResult, len(c.results))
		for id, r := range c.results {
			snap.Results[id] = r
		}
	}
	snap.TimeLimitSeconds = c.timer.LimitSeconds()
	snap.ElapsedSeconds = c.timer.ElapsedSeconds()
	snap.RemainingSeconds = c.timer.RemainingSeconds()
	snap.Warning = c.timer.Warning()
	snap.Expired = c.timer.OutOfTime()
	snap.AnsweredCount = c.store.AnsweredCount()
	snap.MarkedCount = c.store.MarkedCount()
	if len(c.divergences) > 0 {
		snap.Divergences = append([]models.Divergence(nil), c.divergences...)
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	return snap
}

func (c *Controller) Status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) AttemptID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

func (c *Controller) Mode() models.Mode {
	return c.cfg.Mode
}

// Result is the exit contract: available once the session has completed.
func (c *Controller) Result() (*models.SessionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil, false
	}
	r := *c.result
	return &r, true
}

func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) complete(result *models.SessionResult) {
	c.result = result
	c.review = c.cursor.Clone()
	c.setStatus(models.SessionCompleted)
}

func (c *Controller) setStatus(status models.SessionStatus) {
	c.status = status
	if c.session != nil {
		c.session.Status = status
	}
}

// frozen is true once a loaded session can no longer change.
func (c *Controller) frozen() bool {
	return c.session != nil && (c.status == models.SessionCompleted || c.status == models.SessionError)
}

func (c *Controller) questionByID(id uint) models.QuestionRef {
	for _, q := range c.questions {
		if q.ID == id {
			return q
		}
	}
	return models.QuestionRef{}
}
