package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/ranking"
)

const defaultLeaderboardLimit = 10

type leaderboardService struct {
	serviceBase
}

// Leaderboard reads the cached ranking and falls back to computing it from
// the store when the cache is cold or unavailable.
func (s *leaderboardService) Leaderboard(ctx context.Context, actor models.Actor, examID uint, limit int) ([]cache.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	exam, err := s.getExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	if !exam.VisibleTo(actor.Role) {
		return nil, ErrExamNotFound
	}

	entries, err := s.cache.Leaderboard(ctx, examID, limit)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "Leaderboard cache unavailable, using store", "exam_id", examID, "error", err)
	}

	board, err := s.fromStore(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.Refresh(ctx, examID, board)

	if len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

// Refresh replaces the cached ranking of an exam. Cache failures are logged only.
func (s *leaderboardService) Refresh(ctx context.Context, examID uint, entries []cache.LeaderboardEntry) {
	if err := s.cache.ReplaceLeaderboard(ctx, examID, entries); err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh leaderboard cache", "exam_id", examID, "error", err)
	}
}

func (s *leaderboardService) fromStore(ctx context.Context, examID uint) ([]cache.LeaderboardEntry, error) {
	attempts, err := s.repo.Attempt().ListTerminalByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal attempts: %w", err)
	}

	entries := make([]ranking.Entry, len(attempts))
	byID := make(map[uint]*models.Attempt, len(attempts))
	for i, a := range attempts {
		entries[i] = ranking.Entry{AttemptID: a.ID, Score: a.TotalScore}
		if a.FinishedAt != nil {
			entries[i].FinishedAt = *a.FinishedAt
		}
		byID[a.ID] = a
	}

	standings := ranking.Compute(entries)
	board := make([]cache.LeaderboardEntry, len(standings))
	for i, st := range standings {
		a := byID[st.AttemptID]
		board[i] = cache.LeaderboardEntry{
			Rank:       st.Rank,
			AttemptID:  st.AttemptID,
			UserID:     a.UserID,
			Score:      a.TotalScore,
			Percentage: a.Percentage,
			Percentile: st.Percentile,
		}
	}
	return board, nil
}
