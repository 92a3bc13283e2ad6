package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// rankBatchSize bounds the VALUES list of a single rank update statement.
const rankBatchSize = 500

type postgresRepository struct {
	db       *gorm.DB
	exam     repositories.ExamRepository
	question repositories.QuestionRepository
	attempt  repositories.AttemptRepository
	response repositories.ResponseRepository
	audit    repositories.GradeAuditRepository
	paper    repositories.PaperRepository
}

// NewRepository wires every PostgreSQL store around one connection pool.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &postgresRepository{
		db:       db,
		exam:     NewExamPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
		attempt:  NewAttemptPostgreSQL(db),
		response: NewResponsePostgreSQL(db),
		audit:    NewGradeAuditPostgreSQL(db),
		paper:    NewPaperPostgreSQL(db),
	}
}

func (r *postgresRepository) Exam() repositories.ExamRepository             { return r.exam }
func (r *postgresRepository) Question() repositories.QuestionRepository     { return r.question }
func (r *postgresRepository) Attempt() repositories.AttemptRepository       { return r.attempt }
func (r *postgresRepository) Response() repositories.ResponseRepository     { return r.response }
func (r *postgresRepository) GradeAudit() repositories.GradeAuditRepository { return r.audit }
func (r *postgresRepository) Paper() repositories.PaperRepository           { return r.paper }

func (r *postgresRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// conn picks the transaction when one is in flight.
type conn struct {
	db *gorm.DB
}

func (c conn) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}
