package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/ranking"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Triggers recorded on the attempts_finished metric.
const (
	triggerSubmit   = "submit"
	triggerAutosave = "autosave"
	triggerResume   = "resume"
	triggerSweep    = "sweep"
)

// attemptFinaliser scores an attempt, moves it to a terminal status and
// reranks its exam. It is shared by the attempt and grading services.
type attemptFinaliser struct {
	serviceBase
	leaderboard *leaderboardService
}

// finaliseOutcome is produced inside a transaction and consumed by
// afterCommit once it has committed.
type finaliseOutcome struct {
	attempt *models.Attempt
	result  scoring.Result
	board   []cache.LeaderboardEntry
}

type rerankOutcome struct {
	board     []cache.LeaderboardEntry
	standings map[uint]ranking.Standing
}

// isExpired reports whether an in-progress attempt has overrun the exam
// duration. A zero duration never expires.
func isExpired(exam *models.Exam, attempt *models.Attempt, now time.Time) bool {
	return exam.DurationSeconds > 0 && now.After(exam.Deadline(attempt.StartedAt))
}

// finalise must run inside tx with the attempt row locked.
func (f *attemptFinaliser) finalise(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, exam *models.Exam, links []*models.ExamQuestion, status models.AttemptStatus, finishedAt time.Time) (*finaliseOutcome, error) {
	responses, err := f.repo.Response().GetByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	// Unanswered questions get an empty response so review and grading
	// see every question of the exam.
	answered := make(map[uint]struct{}, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = struct{}{}
	}
	for _, link := range links {
		if _, ok := answered[link.QuestionID]; ok {
			continue
		}
		blank := &models.Response{AttemptID: attempt.ID, QuestionID: link.QuestionID}
		if err := f.repo.Response().Upsert(ctx, tx, blank); err != nil {
			return nil, fmt.Errorf("failed to create blank response: %w", err)
		}
		responses = append(responses, blank)
	}

	result, err := f.score(ctx, tx, links, responses, false)
	if err != nil {
		return nil, err
	}

	attempt.Status = status
	attempt.FinishedAt = &finishedAt
	attempt.DurationSeconds = int(finishedAt.Sub(attempt.StartedAt).Seconds())
	attempt.TotalScore = result.TotalScore
	attempt.TotalMarks = result.TotalMarks
	attempt.Percentage = result.Percentage
	if err := f.repo.Attempt().Update(ctx, tx, attempt); err != nil {
		return nil, fmt.Errorf("failed to update attempt: %w", err)
	}

	ranked, err := f.rerank(ctx, tx, exam.ID)
	if err != nil {
		return nil, err
	}
	applyStanding(attempt, ranked.standings)

	return &finaliseOutcome{attempt: attempt, result: result, board: ranked.board}, nil
}

// score grades responses against the current answer key and persists the
// per-response outcome. Responses to questions no longer in the exam are
// stored as incorrect with no marks.
func (f *attemptFinaliser) score(ctx context.Context, tx *gorm.DB, links []*models.ExamQuestion, responses []*models.Response, applyTeacherMarks bool) (scoring.Result, error) {
	keys := scoring.KeysFromExam(links)
	inputs := make([]scoring.Input, len(responses))
	for i, r := range responses {
		inputs[i] = scoring.Input{
			QuestionID:  r.QuestionID,
			Payload:     []byte(r.AnswerPayload),
			TeacherMark: r.TeacherMark,
		}
	}

	result := scoring.Score(keys, inputs, scoring.Options{ApplyTeacherMarks: applyTeacherMarks})

	updates := make([]repositories.ScoreUpdate, len(responses))
	for i, r := range responses {
		out := result.Outcomes[i]
		updates[i] = repositories.ScoreUpdate{
			ResponseID:   r.ID,
			Correct:      out.Correct,
			MarksAwarded: out.Awarded,
		}
	}
	if err := f.repo.Response().UpdateScores(ctx, tx, updates); err != nil {
		return result, fmt.Errorf("failed to store response scores: %w", err)
	}
	return result, nil
}

// rerank recomputes every standing of the exam and writes only the rows
// that moved. Must run inside tx.
func (f *attemptFinaliser) rerank(ctx context.Context, tx *gorm.DB, examID uint) (*rerankOutcome, error) {
	defer metrics.ObserveRanking(time.Now())

	if err := f.repo.Exam().LockForRanking(ctx, tx, examID); err != nil {
		return nil, fmt.Errorf("failed to lock ranking of exam %d: %w", examID, err)
	}

	attempts, err := f.repo.Attempt().ListTerminalByExam(ctx, tx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal attempts: %w", err)
	}

	entries := make([]ranking.Entry, len(attempts))
	current := make([]ranking.Current, len(attempts))
	byID := make(map[uint]*models.Attempt, len(attempts))
	for i, a := range attempts {
		var finished time.Time
		if a.FinishedAt != nil {
			finished = *a.FinishedAt
		}
		entries[i] = ranking.Entry{AttemptID: a.ID, Score: a.TotalScore, FinishedAt: finished}
		current[i] = ranking.Current{AttemptID: a.ID, Rank: a.Rank, Percentile: a.Percentile}
		byID[a.ID] = a
	}

	standings := ranking.Compute(entries)
	if changed := ranking.Diff(current, standings); len(changed) > 0 {
		updates := make([]repositories.RankUpdate, len(changed))
		for i, s := range changed {
			updates[i] = repositories.RankUpdate{AttemptID: s.AttemptID, Rank: s.Rank, Percentile: s.Percentile}
		}
		if err := f.repo.Attempt().UpdateRanks(ctx, tx, updates); err != nil {
			return nil, fmt.Errorf("failed to update ranks: %w", err)
		}
	}

	out := &rerankOutcome{
		board:     make([]cache.LeaderboardEntry, len(standings)),
		standings: make(map[uint]ranking.Standing, len(standings)),
	}
	for i, s := range standings {
		a := byID[s.AttemptID]
		out.standings[s.AttemptID] = s
		out.board[i] = cache.LeaderboardEntry{
			Rank:       s.Rank,
			AttemptID:  s.AttemptID,
			UserID:     a.UserID,
			Score:      a.TotalScore,
			Percentage: a.Percentage,
			Percentile: s.Percentile,
		}
	}
	return out, nil
}

func applyStanding(attempt *models.Attempt, standings map[uint]ranking.Standing) {
	s, ok := standings[attempt.ID]
	if !ok {
		return
	}
	rank, percentile := s.Rank, s.Percentile
	attempt.Rank = &rank
	attempt.Percentile = &percentile
}

// afterCommit publishes the submission event, records metrics and refreshes
// the cached leaderboard.
func (f *attemptFinaliser) afterCommit(ctx context.Context, outcome *finaliseOutcome, trigger string) {
	a := outcome.attempt

	metrics.AttemptsFinished.WithLabelValues(string(a.Status), trigger).Inc()
	if n := len(outcome.result.Warnings); n > 0 {
		metrics.ScoringWarnings.Add(float64(n))
		f.logger.WarnContext(ctx, "Responses scored with warnings",
			"attempt_id", a.ID,
			"warnings", outcome.result.Warnings)
	}

	f.publish(ctx, []*events.NotificationEvent{
		events.NewEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
			AttemptID:  a.ID,
			ExamID:     a.ExamID,
			UserID:     a.UserID,
			Status:     string(a.Status),
			Score:      a.TotalScore,
			Percentage: a.Percentage,
			FinishedAt: *a.FinishedAt,
			Swept:      trigger == triggerSweep,
		}),
	})

	f.leaderboard.Refresh(ctx, a.ExamID, outcome.board)
}

// ===== INPUT HANDLING =====

// validateInputs rejects the whole batch when any response is malformed or
// targets a question outside the exam.
func validateInputs(inputs []ResponseInput, links []*models.ExamQuestion) ValidationErrors {
	inExam := make(map[uint]struct{}, len(links))
	for _, link := range links {
		inExam[link.QuestionID] = struct{}{}
	}

	var errs ValidationErrors
	for i, in := range inputs {
		field := "responses[" + strconv.Itoa(i) + "]"
		switch {
		case in.QuestionID == 0:
			errs = errs.Add(field+".question_id", "is required", nil)
		default:
			if _, ok := inExam[in.QuestionID]; !ok {
				errs = errs.Add(field+".question_id", "question is not part of this exam", in.QuestionID)
			}
		}
		if len(in.Answer) > 0 && !json.Valid(in.Answer) {
			errs = errs.Add(field+".answer", "must be valid JSON", string(in.Answer))
		}
		if in.TimeSpentSeconds < 0 {
			errs = errs.Add(field+".time_spent_seconds", "must be greater than or equal to 0", in.TimeSpentSeconds)
		}
	}
	return errs
}

// applyInputs upserts responses in order, so a later entry for the same
// question wins.
func (f *attemptFinaliser) applyInputs(ctx context.Context, tx *gorm.DB, attemptID uint, inputs []ResponseInput) error {
	for _, in := range inputs {
		response := &models.Response{
			AttemptID:        attemptID,
			QuestionID:       in.QuestionID,
			TimeSpentSeconds: in.TimeSpentSeconds,
			FlaggedForReview: in.FlaggedForReview,
		}
		if len(in.Answer) > 0 {
			response.AnswerPayload = datatypes.JSON(in.Answer)
		}
		if err := f.repo.Response().Upsert(ctx, tx, response); err != nil {
			return fmt.Errorf("failed to save response for question %d: %w", in.QuestionID, err)
		}
	}
	return nil
}

// ===== VIEWS =====

// questionViews strips answer keys. Shuffled exams are permuted with a seed
// derived from the attempt, so every resume shows the same order.
func questionViews(links []*models.ExamQuestion, attemptID uint, shuffle bool) ([]QuestionView, error) {
	views := make([]QuestionView, 0, len(links))
	for _, link := range links {
		if link.Question == nil {
			continue
		}
		q := link.Question
		view := QuestionView{
			QuestionID:           link.QuestionID,
			Type:                 q.Type,
			Statement:            q.Statement,
			Marks:                link.EffectiveMarks(),
			EstimatedTimeSeconds: q.EstimatedTimeSeconds,
		}
		if q.Type.IsChoiceType() {
			choices, err := q.ChoiceMap()
			if err != nil {
				return nil, err
			}
			view.Choices = choices
		}
		views = append(views, view)
	}

	if shuffle {
		rng := rand.New(rand.NewPCG(uint64(attemptID), 0x9e3779b97f4a7c15))
		rng.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
	}
	for i := range views {
		views[i].Order = i + 1
	}
	return views, nil
}

func submitResult(attempt *models.Attempt, warnings []scoring.Warning) *SubmitResult {
	return &SubmitResult{
		AttemptID:  attempt.ID,
		Score:      attempt.TotalScore,
		Percentage: attempt.Percentage,
		Status:     attempt.Status,
		TotalMarks: attempt.TotalMarks,
		Rank:       attempt.Rank,
		Percentile: attempt.Percentile,
		FinishedAt: attempt.FinishedAt,
		Warnings:   warnings,
	}
}

func savedResponses(responses []*models.Response) []SavedResponse {
	saved := make([]SavedResponse, 0, len(responses))
	for _, r := range responses {
		item := SavedResponse{
			QuestionID:       r.QuestionID,
			TimeSpentSeconds: r.TimeSpentSeconds,
			FlaggedForReview: r.FlaggedForReview,
		}
		if len(r.AnswerPayload) > 0 {
			item.Answer = json.RawMessage(r.AnswerPayload)
		}
		saved = append(saved, item)
	}
	return saved
}

func remainingSeconds(exam *models.Exam, attempt *models.Attempt, now time.Time) int {
	if attempt.Status.IsTerminal() || exam.DurationSeconds <= 0 {
		return 0
	}
	left := exam.Deadline(attempt.StartedAt).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds())
}
