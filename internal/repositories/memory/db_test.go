package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWithTransaction_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(Open())

	err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		require.NoError(t, repo.Exam().Create(ctx, tx, &models.Exam{Title: "draft"}))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = repo.Exam().GetByID(ctx, nil, 1)
	assert.Error(t, err)
}

func TestWithTransaction_RollbackKeepsWritesOutsideTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(Open())

	entered := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			close(entered)
			<-release
			return errors.New("abort")
		})
	}()
	<-entered

	question := &models.Question{Type: models.QuestionFIB, Statement: "Unit of mass?", Marks: 1}
	created := make(chan error, 1)
	go func() {
		created <- repo.Question().Create(ctx, nil, question)
	}()

	close(release)
	require.Error(t, <-txDone)
	require.NoError(t, <-created)

	stored, err := repo.Question().GetByID(ctx, nil, question.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unit of mass?", stored.Statement)
}
