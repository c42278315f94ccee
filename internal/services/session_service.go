package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session/internal/cache"
	"github.com/SAP-F-2025/exam-session/internal/events"
	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/session"
	"github.com/SAP-F-2025/exam-session/internal/validator"
)

const (
	DefaultTickInterval = time.Second
	DefaultMaxSessions  = 1000
)

type SessionServiceConfig struct {
	TickInterval     time.Duration
	WarningThreshold time.Duration
	MaxSessions      int
	Clock            session.Clock
}

// SessionDeps are the collaborators shared by every session of the service.
// Progress, Publisher and Lister are optional.
type SessionDeps struct {
	Collaborators session.Dependencies
	Lister        ResumableLister
	Progress      *cache.ProgressCache
	Publisher     events.EventPublisher
}

type managedSession struct {
	ctrl   *session.Controller
	userID string

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	completeOnce sync.Once
}

type sessionService struct {
	deps      SessionDeps
	config    SessionServiceConfig
	logger    *slog.Logger
	opLogger  *ServiceLogger
	validator *validator.Validator

	mu       sync.RWMutex
	sessions map[uint]*managedSession
}

func NewSessionService(deps SessionDeps, config SessionServiceConfig, logger *slog.Logger, validator *validator.Validator) SessionService {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &sessionService{
		deps:      deps,
		config:    config,
		logger:    logger,
		opLogger:  NewServiceLogger(logger, LogConfig{Service: "exam-session", Component: "session_service"}),
		validator: validator,
		sessions:  make(map[uint]*managedSession),
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, userID string, req *StartSessionRequest) (*models.Snapshot, error) {
	op := s.opLogger.WithOperation(ctx, "start_session", userID)
	snap, err := s.start(ctx, userID, req)
	var attemptID uint
	if req != nil {
		attemptID = req.AttemptID
	}
	op.LogResult(attemptID, err)
	return snap, err
}

func (s *sessionService) start(ctx context.Context, userID string, req *StartSessionRequest) (*models.Snapshot, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if req == nil {
		return nil, ErrBadRequest
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeExam
	}

	s.logger.Info("Starting session", "attempt_id", req.AttemptID, "user_id", userID, "mode", mode)

	s.mu.Lock()
	if existing, ok := s.sessions[req.AttemptID]; ok {
		s.mu.Unlock()
		if existing.userID != userID {
			return nil, NewPermissionError(userID, req.AttemptID, "session", "start", "session is open for another user")
		}
		if existing.ctrl.Mode() != mode {
			return nil, NewBusinessRuleError("session_mode",
				fmt.Sprintf("session is already open in %s mode", existing.ctrl.Mode()),
				map[string]interface{}{"attempt_id": req.AttemptID, "requested_mode": mode})
		}
		snap := existing.ctrl.Snapshot()
		return &snap, nil
	}
	if !s.reserveSlot() {
		s.mu.Unlock()
		return nil, ErrSessionLimitReached
	}

	ctrl := session.NewController(s.deps.Collaborators, session.Config{
		Mode:             mode,
		Clock:            s.config.Clock,
		WarningThreshold: s.config.WarningThreshold,
		Validate:         s.snapshotCheck(userID, req.AttemptID, mode),
		Logger:           s.logger,
	})
	loopCtx, cancel := context.WithCancel(context.Background())
	ms := &managedSession{
		ctrl:   ctrl,
		userID: userID,
		ctx:    loopCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions[req.AttemptID] = ms
	s.mu.Unlock()

	ticking := false
	defer func() {
		if !ticking {
			close(ms.done)
		}
	}()

	// Close and Shutdown during the load abort the fetch.
	loadCtx, stop := context.WithCancel(ctx)
	defer stop()
	context.AfterFunc(loopCtx, stop)

	err := ctrl.Start(loadCtx, req.AttemptID)
	if err == nil && loopCtx.Err() != nil {
		err = fmt.Errorf("%w: closed while loading", ErrSessionNotFound)
	}
	if err != nil {
		cancel()
		s.mu.Lock()
		if s.sessions[req.AttemptID] == ms {
			delete(s.sessions, req.AttemptID)
		}
		s.mu.Unlock()
		return nil, err
	}

	resumed := s.reconcile(ctx, ms)

	snap := ctrl.Snapshot()
	s.publish(ctx, events.NewSessionStartedEvent(snap, userID, resumed))

	if snap.Status == models.SessionActive && mode == models.ModeExam && snap.TimeLimitSeconds > 0 {
		ticking = true
		go s.runTicker(ms)
	}
	if snap.Status == models.SessionActive {
		s.saveProgress(ctx, ms)
	}
	return &snap, nil
}

// reserveSlot reports whether another session fits. Completed and failed sessions
// do not count against the limit and are evicted once it is reached. Callers hold s.mu.
func (s *sessionService) reserveSlot() bool {
	if len(s.sessions) < s.config.MaxSessions {
		return true
	}
	live := 0
	for attemptID, ms := range s.sessions {
		switch ms.ctrl.Status() {
		case models.SessionCompleted, models.SessionError:
			delete(s.sessions, attemptID)
			ms.cancel()
			s.logger.Debug("Evicted finished session", "attempt_id", attemptID, "user_id", ms.userID)
		default:
			live++
		}
	}
	return live < s.config.MaxSessions
}

// snapshotCheck runs before a fetched snapshot seeds the controller.
func (s *sessionService) snapshotCheck(userID string, attemptID uint, mode models.Mode) func(*models.AttemptSnapshot) error {
	return func(snap *models.AttemptSnapshot) error {
		if err := s.validator.Validate(snap); err != nil {
			return err
		}
		if snap.AttemptID != 0 && snap.AttemptID != attemptID {
			return fmt.Errorf("attempt %d returned for %d", snap.AttemptID, attemptID)
		}
		if snap.OwnerID != "" && snap.OwnerID != userID {
			return NewPermissionError(userID, snap.AttemptID, "attempt", "start", "attempt belongs to another user")
		}
		if snap.Mode != "" && snap.Mode != mode {
			return NewBusinessRuleError("session_mode",
				fmt.Sprintf("attempt is a %s attempt", snap.Mode),
				map[string]interface{}{"attempt_id": snap.AttemptID, "requested_mode": mode})
		}
		return nil
	}
}

// reconcile compares the cached checkpoint with the loaded state and reports whether
// one existed.
func (s *sessionService) reconcile(ctx context.Context, ms *managedSession) bool {
	if s.deps.Progress == nil {
		return false
	}
	attemptID := ms.ctrl.AttemptID()
	local, err := s.deps.Progress.Load(ctx, ms.userID, attemptID)
	if err != nil {
		s.logger.Warn("Failed to load cached progress", "attempt_id", attemptID, "error", err)
		return false
	}
	if local == nil {
		return false
	}
	if divergences := ms.ctrl.Reconcile(local); len(divergences) > 0 {
		s.logger.Warn("Cached progress diverges from server state",
			"attempt_id", attemptID,
			"user_id", ms.userID,
			"divergences", len(divergences))
		s.publish(ctx, events.NewResumeDivergenceEvent(attemptID, ms.userID, divergences))
	}
	return true
}

func (s *sessionService) runTicker(ms *managedSession) {
	defer close(ms.done)
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			return
		case <-ticker.C:
			if s.tick(ms) {
				return
			}
		}
	}
}

// tick applies one timer tick and reports whether the loop should stop.
func (s *sessionService) tick(ms *managedSession) bool {
	ctx := context.Background()
	attemptID := ms.ctrl.AttemptID()

	res, err := ms.ctrl.Tick(ms.ctx)
	if res.WarningStarted {
		s.publish(ctx, events.NewTimeWarningEvent(attemptID, ms.userID, res.RemainingSeconds))
	}
	if err != nil {
		s.logger.Warn("Auto-submit failed", "attempt_id", attemptID, "error", err)
		s.publishSubmitFailure(ctx, ms, models.TriggerTimeout, err)
	}

	switch ms.ctrl.Status() {
	case models.SessionCompleted:
		s.onCompleted(ctx, ms)
		return true
	case models.SessionError:
		return true
	}
	return false
}

func (s *sessionService) onCompleted(ctx context.Context, ms *managedSession) {
	ms.completeOnce.Do(func() {
		ms.cancel()
		snap := ms.ctrl.Snapshot()
		if snap.Result != nil {
			s.publish(ctx, events.NewSessionSubmittedEvent(snap, ms.userID, *snap.Result))
		}
		if s.deps.Progress != nil {
			if err := s.deps.Progress.Delete(ctx, ms.userID, snap.AttemptID); err != nil {
				s.logger.Warn("Failed to delete cached progress", "attempt_id", snap.AttemptID, "error", err)
			}
		}
	})
}

func (s *sessionService) Close(ctx context.Context, userID string, attemptID uint) error {
	op := s.opLogger.WithOperation(ctx, "close_session", userID)
	ms, err := s.lookup(userID, attemptID)
	if err == nil {
		s.mu.Lock()
		delete(s.sessions, attemptID)
		s.mu.Unlock()
		ms.cancel()
		<-ms.done
	}
	op.LogResult(attemptID, err)
	return err
}

func (s *sessionService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uint]*managedSession)
	s.mu.Unlock()

	for _, ms := range sessions {
		ms.cancel()
	}
	for _, ms := range sessions {
		<-ms.done
	}
	s.logger.Info("Session service stopped", "sessions", len(sessions))
}

// ===== USER EVENTS =====

func (s *sessionService) Get(ctx context.Context, userID string, attemptID uint) (*models.Snapshot, error) {
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}
	snap := ms.ctrl.Snapshot()
	return &snap, nil
}

func (s *sessionService) Answer(ctx context.Context, userID string, attemptID uint, req *AnswerRequest) (*models.AnswerRecord, error) {
	op := s.opLogger.WithOperation(ctx, "answer", userID)
	rec, err := s.answer(ctx, userID, attemptID, req)
	op.LogResult(attemptID, err)
	return rec, err
}

func (s *sessionService) answer(ctx context.Context, userID string, attemptID uint, req *AnswerRequest) (*models.AnswerRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}
	rec, err := ms.ctrl.Answer(req.QuestionID, req.OptionKey)
	if err != nil {
		return nil, err
	}
	s.saveProgress(ctx, ms)
	return &rec, nil
}

func (s *sessionService) Mark(ctx context.Context, userID string, attemptID uint, req *MarkRequest) (*models.AnswerRecord, error) {
	op := s.opLogger.WithOperation(ctx, "mark", userID)
	rec, err := s.mark(ctx, userID, attemptID, req)
	op.LogResult(attemptID, err)
	return rec, err
}

func (s *sessionService) mark(ctx context.Context, userID string, attemptID uint, req *MarkRequest) (*models.AnswerRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}

	var rec models.AnswerRecord
	switch {
	case req.Marked == nil:
		rec, err = ms.ctrl.ToggleMark(req.QuestionID)
	case *req.Marked:
		rec, err = ms.ctrl.Mark(req.QuestionID)
	default:
		rec, err = ms.ctrl.Unmark(req.QuestionID)
	}
	if err != nil {
		return nil, err
	}
	s.saveProgress(ctx, ms)
	return &rec, nil
}

func (s *sessionService) Navigate(ctx context.Context, userID string, attemptID uint, req *NavigateRequest) (*models.Snapshot, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Index != nil:
		_, err = ms.ctrl.Navigate(*req.Index)
	case req.Direction == "prev":
		_, err = ms.ctrl.Prev()
	default:
		_, err = ms.ctrl.Next()
	}
	if err != nil {
		return nil, err
	}
	if ms.ctrl.Status() == models.SessionActive {
		s.saveProgress(ctx, ms)
	}
	snap := ms.ctrl.Snapshot()
	return &snap, nil
}

func (s *sessionService) Summary(ctx context.Context, userID string, attemptID uint) (*models.SubmitSummary, error) {
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}
	summary, err := ms.ctrl.RequestSubmit()
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ===== SUBMISSION =====

func (s *sessionService) Submit(ctx context.Context, userID string, attemptID uint) (*models.SessionResult, error) {
	op := s.opLogger.WithOperation(ctx, "submit", userID)
	result, err := s.submit(ctx, userID, attemptID)
	op.LogResult(attemptID, err)
	return result, err
}

func (s *sessionService) submit(ctx context.Context, userID string, attemptID uint) (*models.SessionResult, error) {
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}

	result, err := ms.ctrl.ConfirmSubmit(ctx)
	if err != nil {
		s.publishSubmitFailure(ctx, ms, models.TriggerManual, err)
		return nil, err
	}
	s.onCompleted(ctx, ms)
	return result, nil
}

func (s *sessionService) SubmitQuestion(ctx context.Context, userID string, attemptID, questionID uint) (*models.QuestionSubmitResult, error) {
	op := s.opLogger.WithOperation(ctx, "submit_question", userID)
	res, err := s.submitQuestion(ctx, userID, attemptID, questionID)
	op.LogResult(attemptID, err)
	return res, err
}

func (s *sessionService) submitQuestion(ctx context.Context, userID string, attemptID, questionID uint) (*models.QuestionSubmitResult, error) {
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}

	res, err := ms.ctrl.SubmitQuestion(ctx, questionID)
	if err != nil {
		s.publishSubmitFailure(ctx, ms, models.TriggerManual, err)
		return nil, err
	}
	s.publish(ctx, events.NewQuestionSubmittedEvent(attemptID, userID, *res))

	if ms.ctrl.Status() == models.SessionCompleted {
		s.onCompleted(ctx, ms)
	} else {
		s.saveProgress(ctx, ms)
	}
	return res, nil
}

// ===== PROGRESS =====

func (s *sessionService) Checkpoint(ctx context.Context, userID string, attemptID uint) (*models.Progress, error) {
	ms, err := s.lookup(userID, attemptID)
	if err != nil {
		return nil, err
	}
	progress, err := ms.ctrl.Checkpoint()
	if err != nil {
		return nil, err
	}
	if s.deps.Progress != nil && ms.ctrl.Status() == models.SessionActive {
		if err := s.deps.Progress.Save(ctx, userID, progress); err != nil {
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
	}
	return &progress, nil
}

func (s *sessionService) Resumable(ctx context.Context, userID string, mode models.Mode) ([]models.AttemptSummary, error) {
	if s.deps.Lister == nil {
		return nil, ErrResumableUnsupported
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}
	summaries, err := s.deps.Lister.ListResumable(ctx, userID, mode)
	if err != nil {
		return nil, fmt.Errorf("list resumable attempts: %w", err)
	}
	// Nothing left to resume in any mode, so cached checkpoints are stale.
	if mode == "" && len(summaries) == 0 && s.deps.Progress != nil {
		if err := s.deps.Progress.DeleteUser(ctx, userID); err != nil {
			s.logger.Warn("Failed to clear stale progress", "user_id", userID, "error", err)
		}
	}
	return summaries, nil
}

// ===== HELPERS =====

func (s *sessionService) lookup(userID string, attemptID uint) (*managedSession, error) {
	s.mu.RLock()
	ms, ok := s.sessions[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ms.userID != userID {
		return nil, NewPermissionError(userID, attemptID, "session", "access", "session belongs to another user")
	}
	return ms, nil
}

// saveProgress writes the current checkpoint through to the cache. Cache failures are
// logged and never fail the user operation.
func (s *sessionService) saveProgress(ctx context.Context, ms *managedSession) {
	if s.deps.Progress == nil {
		return
	}
	progress, err := ms.ctrl.Checkpoint()
	if err != nil {
		return
	}
	if err := s.deps.Progress.Save(ctx, ms.userID, progress); err != nil {
		s.logger.Warn("Failed to cache progress", "attempt_id", progress.AttemptID, "error", err)
	}
}

func (s *sessionService) publishSubmitFailure(ctx context.Context, ms *managedSession, trigger models.SubmitTrigger, err error) {
	var submitErr *session.SubmitError
	if !errors.As(err, &submitErr) {
		return
	}
	s.publish(ctx, events.NewSubmitFailedEvent(submitErr.AttemptID, ms.userID, trigger, submitErr.Rejected, err))
}

func (s *sessionService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}
