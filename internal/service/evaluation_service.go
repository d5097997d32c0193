package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/peak-go-api/internal/dto"
	"github.com/noah-isme/peak-go-api/internal/events"
	"github.com/noah-isme/peak-go-api/internal/lock"
	"github.com/noah-isme/peak-go-api/internal/models"
	"github.com/noah-isme/peak-go-api/internal/observability"
	"github.com/noah-isme/peak-go-api/internal/repository"
	"github.com/noah-isme/peak-go-api/pkg/ai"
)

var (
	// ErrPaperNotFound indicates the paper id is malformed or unknown.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrNoSubmissions indicates the paper has nothing to grade or reset.
	ErrNoSubmissions = errors.New("no submissions to evaluate")
	// ErrNotEvaluated indicates a reset was requested for an ungraded paper.
	ErrNotEvaluated = errors.New("paper has not been evaluated")
	// ErrPersistenceFailed indicates the final write did not modify the paper.
	ErrPersistenceFailed = errors.New("failed to persist paper")
	// ErrPaperBusy indicates another pass held the paper for the whole lock timeout.
	ErrPaperBusy = errors.New("paper is being processed by another request")

	// ErrScoringUnavailable and ErrMalformedEvaluation are re-exported for handlers.
	ErrScoringUnavailable  = ai.ErrScoringUnavailable
	ErrMalformedEvaluation = ai.ErrMalformedEvaluation
)

// DefaultLockTimeout bounds how long a pass waits for a paper held by another pass.
const DefaultLockTimeout = 2 * time.Minute

// EvaluationService grades and resets papers.
type EvaluationService interface {
	Evaluate(ctx context.Context, paperID string) error
	Reset(ctx context.Context, paperID string) error
	History(ctx context.Context, paperID string, limit int) ([]dto.EvaluationRunResponse, error)
}

// EvaluationServiceConfig tunes the orchestrator.
type EvaluationServiceConfig struct {
	LockTimeout time.Duration
}

type evaluationService struct {
	papers    repository.PaperRepository
	runs      repository.EvaluationRunRepository
	evaluator *SubmissionEvaluator
	locker    lock.Locker
	publisher events.Publisher
	cfg       EvaluationServiceConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewEvaluationService wires the orchestrator. runs and publisher may be nil; a nil locker falls
// back to an in-process keyed mutex.
func NewEvaluationService(
	papers repository.PaperRepository,
	runs repository.EvaluationRunRepository,
	evaluator *SubmissionEvaluator,
	locker lock.Locker,
	publisher events.Publisher,
	cfg EvaluationServiceConfig,
	logger zerolog.Logger,
) EvaluationService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	return &evaluationService{
		papers:    papers,
		runs:      runs,
		evaluator: evaluator,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/peak-go-api/internal/service/evaluation"),
		now:       time.Now,
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, paperID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.evaluate")
	span.SetAttributes(attribute.String("paper.id", paperID))
	defer span.End()

	var stats EvaluationStats
	start := s.now()
	defer func() {
		s.finish(ctx, span, models.EvaluationActionEvaluate, paperID, stats, start, err)
	}()

	release, err := s.acquire(ctx, paperID)
	if err != nil {
		return err
	}
	defer release()

	paper, err := s.load(ctx, paperID)
	if err != nil {
		return err
	}
	if !paper.HasSubmissions() {
		return ErrNoSubmissions
	}

	graded, stats, err := s.evaluator.EvaluateAll(ctx, paper)
	if err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("evaluation aborted before commit: %w", ctxErr)
	}

	return s.commit(ctx, paper, graded.Submissions, true)
}

func (s *evaluationService) Reset(ctx context.Context, paperID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.reset")
	span.SetAttributes(attribute.String("paper.id", paperID))
	defer span.End()

	var stats EvaluationStats
	start := s.now()
	defer func() {
		s.finish(ctx, span, models.EvaluationActionReset, paperID, stats, start, err)
	}()

	release, err := s.acquire(ctx, paperID)
	if err != nil {
		return err
	}
	defer release()

	paper, err := s.load(ctx, paperID)
	if err != nil {
		return err
	}
	if !paper.HasSubmissions() {
		return ErrNoSubmissions
	}
	if !paper.Evaluated {
		return ErrNotEvaluated
	}

	cleared := ResetAll(paper)
	stats = EvaluationStats{Submissions: len(cleared.Submissions), Answers: countAnswers(cleared.Submissions)}

	return s.commit(ctx, paper, cleared.Submissions, false)
}

func (s *evaluationService) History(ctx context.Context, paperID string, limit int) ([]dto.EvaluationRunResponse, error) {
	if _, err := repository.ParseObjectID(paperID); err != nil {
		return nil, ErrPaperNotFound
	}
	if s.runs == nil {
		return []dto.EvaluationRunResponse{}, nil
	}

	runs, err := s.runs.ListByPaper(ctx, paperID, limit)
	if err != nil {
		return nil, err
	}

	response := make([]dto.EvaluationRunResponse, 0, len(runs))
	for _, run := range runs {
		response = append(response, dto.NewEvaluationRunResponse(run))
	}
	return response, nil
}

func (s *evaluationService) acquire(ctx context.Context, paperID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	release, err := s.locker.Lock(lockCtx, paperID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, fmt.Errorf("%w: %w", ErrPaperBusy, err)
		}
		return nil, fmt.Errorf("acquire paper lock: %w", err)
	}

	observability.EvaluationsInFlight().Inc()
	return func() {
		observability.EvaluationsInFlight().Dec()
		release()
	}, nil
}

func (s *evaluationService) load(ctx context.Context, paperID string) (models.Paper, error) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, repository.ErrPaperNotFound) || errors.Is(err, repository.ErrInvalidPaperID) {
			return models.Paper{}, ErrPaperNotFound
		}
		return models.Paper{}, err
	}
	return paper, nil
}

// commit is the only write of a pass. It replaces the submissions array wholesale and only
// applies while the paper is still at the version read by load.
func (s *evaluationService) commit(ctx context.Context, paper models.Paper, submissions []models.StudentSubmission, evaluated bool) error {
	modified, err := s.papers.UpdateEvaluation(ctx, paper.ID, paper.Version, submissions, evaluated)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	if modified == 0 {
		return fmt.Errorf("%w: paper %s changed or was removed during the pass", ErrPersistenceFailed, paper.ID)
	}
	return nil
}

func (s *evaluationService) finish(ctx context.Context, span trace.Span, action, paperID string, stats EvaluationStats, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	status := models.EvaluationRunSucceeded
	if err != nil {
		status = models.EvaluationRunFailed
	}

	observability.EvaluationPasses().WithLabelValues(action, status).Inc()
	observability.EvaluationPassDuration().WithLabelValues(action).Observe(elapsed.Seconds())

	span.SetAttributes(
		attribute.Int("evaluation.submissions", stats.Submissions),
		attribute.Int("evaluation.answers", stats.Answers),
		attribute.Int("evaluation.skipped", stats.Skipped),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, action+"_failed")
		event := s.logger.Warn()
		if !isClientError(err) {
			event = s.logger.Error()
		}
		event.Err(err).Str("paper_id", paperID).Str("action", action).Dur("elapsed", elapsed).Msg("evaluation pass failed")
	} else {
		span.SetStatus(codes.Ok, "")
		if action == models.EvaluationActionEvaluate {
			observability.EvaluationAnswers().WithLabelValues("scored").Add(float64(stats.Answers))
			observability.EvaluationAnswers().WithLabelValues("skipped").Add(float64(stats.Skipped))
		}
		s.logger.Info().
			Str("paper_id", paperID).
			Str("action", action).
			Int("submissions", stats.Submissions).
			Int("answers", stats.Answers).
			Int("skipped", stats.Skipped).
			Dur("elapsed", elapsed).
			Msg("evaluation pass committed")
	}

	// Unknown papers leave no trace in the run log or on the event bus.
	if errors.Is(err, ErrPaperNotFound) {
		return
	}

	detached := context.WithoutCancel(ctx)
	s.record(detached, action, status, paperID, stats, elapsed, err)
	if err == nil {
		s.publish(detached, action, paperID, stats)
	}
}

func (s *evaluationService) record(ctx context.Context, action, status, paperID string, stats EvaluationStats, elapsed time.Duration, err error) {
	if s.runs == nil {
		return
	}

	run := &models.EvaluationRun{
		PaperID:     paperID,
		Action:      action,
		Status:      status,
		Submissions: stats.Submissions,
		Answers:     stats.Answers,
		Skipped:     stats.Skipped,
		DurationMs:  elapsed.Milliseconds(),
	}
	if action == models.EvaluationActionEvaluate {
		run.Provider = s.evaluator.Provider()
	}
	if err != nil {
		run.Error = err.Error()
		run.Details = datatypes.JSONMap{"kind": failureKind(err)}
	}

	if recordErr := s.runs.Create(ctx, run); recordErr != nil {
		s.logger.Warn().Err(recordErr).Str("paper_id", paperID).Msg("failed to record evaluation run")
	}
}

func (s *evaluationService) publish(ctx context.Context, action, paperID string, stats EvaluationStats) {
	if s.publisher == nil {
		return
	}

	event := events.PaperEvent{
		Type:        events.TypePaperEvaluated,
		PaperID:     paperID,
		Evaluated:   true,
		Submissions: stats.Submissions,
	}
	if action == models.EvaluationActionReset {
		event.Type = events.TypePaperReset
		event.Evaluated = false
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("paper_id", paperID).Str("event", event.Type).Msg("failed to publish paper event")
	}
}

func isClientError(err error) bool {
	return errors.Is(err, ErrPaperNotFound) || errors.Is(err, ErrNoSubmissions) || errors.Is(err, ErrNotEvaluated)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrNoSubmissions):
		return "no_submissions"
	case errors.Is(err, ErrNotEvaluated):
		return "not_evaluated"
	case errors.Is(err, ErrMalformedEvaluation):
		return "malformed_evaluation"
	case errors.Is(err, ErrScoringUnavailable):
		return "scoring_unavailable"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	case errors.Is(err, ErrPaperBusy):
		return "paper_busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
