package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/peak-go-api/internal/models"
	"github.com/noah-isme/peak-go-api/pkg/ai"
)

// MaxEvaluationConcurrency caps the number of in-flight scoring calls per paper.
const MaxEvaluationConcurrency = 4

// ResponseValidator turns raw model output into a validated evaluation.
type ResponseValidator interface {
	Validate(raw json.RawMessage) (ai.Evaluation, error)
}

// EvaluationStats summarises one pass over a paper.
type EvaluationStats struct {
	Submissions int
	Answers     int
	Skipped     int
}

// SubmissionEvaluator scores every answer of every submission of a paper.
type SubmissionEvaluator struct {
	scorer      ai.Scorer
	validator   ResponseValidator
	concurrency int
	logger      zerolog.Logger
}

// NewSubmissionEvaluator builds an evaluator. Concurrency 1 scores answers strictly in stored order.
func NewSubmissionEvaluator(scorer ai.Scorer, validator ResponseValidator, concurrency int, logger zerolog.Logger) *SubmissionEvaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxEvaluationConcurrency {
		concurrency = MaxEvaluationConcurrency
	}

	return &SubmissionEvaluator{
		scorer:      scorer,
		validator:   validator,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "submission_evaluator").Logger(),
	}
}

// Provider names the scoring backend.
func (e *SubmissionEvaluator) Provider() string {
	return ai.ProviderName(e.scorer)
}

type answerJob struct {
	submission int
	answer     int
	question   models.Question
}

// EvaluateAll returns a copy of paper with every answer scored and every total recomputed. The
// argument is not modified. Any single failure aborts the pass and no partial result is returned.
func (e *SubmissionEvaluator) EvaluateAll(ctx context.Context, paper models.Paper) (models.Paper, EvaluationStats, error) {
	if !paper.HasSubmissions() {
		return paper, EvaluationStats{}, ErrNoSubmissions
	}

	questions := make(map[int]models.Question, len(paper.Questions))
	for _, question := range paper.Questions {
		questions[question.Order] = question
	}

	submissions := paper.CloneSubmissions()
	stats := EvaluationStats{Submissions: len(submissions)}
	jobs := make([]answerJob, 0)
	for i := range submissions {
		for j := range submissions[i].Answers {
			answer := &submissions[i].Answers[j]
			question, ok := questions[answer.Order]
			if !ok {
				answer.Scores = models.Score{}
				answer.Feedback = ""
				stats.Skipped++
				e.logger.Warn().
					Str("paper_id", paper.ID).
					Str("student_email", submissions[i].StudentEmail).
					Int("order", answer.Order).
					Msg("answer has no matching question, skipping")
				continue
			}
			jobs = append(jobs, answerJob{submission: i, answer: j, question: question})
		}
	}

	results := make([]ai.Evaluation, len(jobs))
	if err := e.scoreAll(ctx, submissions, jobs, results); err != nil {
		return paper, stats, err
	}

	for k, job := range jobs {
		answer := &submissions[job.submission].Answers[job.answer]
		answer.Scores = scoreFromEvaluation(results[k].Scores)
		answer.Feedback = results[k].Feedback
	}
	for i := range submissions {
		submissions[i].TotalScore = totalScore(submissions[i].Answers)
	}
	stats.Answers = len(jobs)

	updated := paper
	updated.Submissions = submissions
	updated.Evaluated = true
	return updated, stats, nil
}

func (e *SubmissionEvaluator) scoreAll(ctx context.Context, submissions []models.StudentSubmission, jobs []answerJob, results []ai.Evaluation) error {
	if e.concurrency == 1 {
		for k, job := range jobs {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("evaluation aborted: %w", err)
			}
			evaluation, err := e.scoreOne(ctx, submissions, job)
			if err != nil {
				return err
			}
			results[k] = evaluation
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for k, job := range jobs {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("evaluation aborted: %w", err)
			}
			evaluation, err := e.scoreOne(groupCtx, submissions, job)
			if err != nil {
				return err
			}
			results[k] = evaluation
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evaluation aborted: %w", err)
	}
	return nil
}

// scoreOne grades a single answer. The outbound call is detached from caller cancellation so an
// in-flight request completes; the scorer's own timeout still bounds it.
func (e *SubmissionEvaluator) scoreOne(ctx context.Context, submissions []models.StudentSubmission, job answerJob) (ai.Evaluation, error) {
	submission := submissions[job.submission]
	answer := submission.Answers[job.answer]

	raw, err := e.scorer.Score(context.WithoutCancel(ctx), ai.ScoreRequest{
		Question:        job.question.Question,
		ReferenceAnswer: job.question.Answer,
		CandidateAnswer: answer.Answer,
	})
	if err != nil {
		return ai.Evaluation{}, fmt.Errorf("score answer %d of %s: %w", answer.Order, submission.StudentEmail, err)
	}

	evaluation, err := e.validator.Validate(raw)
	if err != nil {
		return ai.Evaluation{}, fmt.Errorf("validate answer %d of %s: %w", answer.Order, submission.StudentEmail, err)
	}

	return evaluation, nil
}

func scoreFromEvaluation(scores ai.Scores) models.Score {
	return models.Score{
		Clarity:      scores.Clarity,
		Relevance:    scores.Relevance,
		Accuracy:     scores.Accuracy,
		Completeness: scores.Completeness,
		Average:      scores.Average,
	}
}

// totalScore sums the answer averages.
func totalScore(answers []models.StudentAnswer) float64 {
	total := 0.0
	for _, answer := range answers {
		total += answer.Scores.Average
	}
	return total
}
