// Package memory is a map backed implementation of the repositories used by
// local runs (examctl, development server without DATABASE_URL) and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type (
	// DB holds every table. Rows are stored by value so a snapshot is a
	// shallow copy of each map.
	DB struct {
		mutex sync.RWMutex
		// txMutex serializes transactions, which stands in for row locks.
		txMutex sync.Mutex

		tables tables
	}

	tables struct {
		questions     map[uint]models.Question
		exams         map[uint]models.Exam
		examQuestions map[uint]models.ExamQuestion
		attempts      map[uint]models.Attempt
		responses     map[uint]models.Response
		audits        map[uint]models.GradeAudit
		papers        map[uint]models.QuestionPaper
		paperQs       map[uint]models.PaperQuestion
		paperAttempts map[uint]models.PaperAttempt
		paperAnswers  map[uint]models.PaperAnswer
		evaluations   map[uint]models.Evaluation

		seq map[string]uint
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		questions:     make(map[uint]models.Question),
		exams:         make(map[uint]models.Exam),
		examQuestions: make(map[uint]models.ExamQuestion),
		attempts:      make(map[uint]models.Attempt),
		responses:     make(map[uint]models.Response),
		audits:        make(map[uint]models.GradeAudit),
		papers:        make(map[uint]models.QuestionPaper),
		paperQs:       make(map[uint]models.PaperQuestion),
		paperAttempts: make(map[uint]models.PaperAttempt),
		paperAnswers:  make(map[uint]models.PaperAnswer),
		evaluations:   make(map[uint]models.Evaluation),
		seq:           make(map[string]uint),
	}
}

func (t tables) clone() tables {
	return tables{
		questions:     maps.Clone(t.questions),
		exams:         maps.Clone(t.exams),
		examQuestions: maps.Clone(t.examQuestions),
		attempts:      maps.Clone(t.attempts),
		responses:     maps.Clone(t.responses),
		audits:        maps.Clone(t.audits),
		papers:        maps.Clone(t.papers),
		paperQs:       maps.Clone(t.paperQs),
		paperAttempts: maps.Clone(t.paperAttempts),
		paperAnswers:  maps.Clone(t.paperAnswers),
		evaluations:   maps.Clone(t.evaluations),
		seq:           maps.Clone(t.seq),
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) uint {
	db.tables.seq[table]++
	return db.tables.seq[table]
}

type repository struct {
	db       *DB
	exam     *examRepository
	question *questionRepository
	attempt  *attemptRepository
	response *responseRepository
	audit    *auditRepository
	paper    *paperRepository
}

// NewRepository returns a Repository backed by db.
func NewRepository(db *DB) repositories.Repository {
	return &repository{
		db:       db,
		exam:     &examRepository{db: db},
		question: &questionRepository{db: db},
		attempt:  &attemptRepository{db: db},
		response: &responseRepository{db: db},
		audit:    &auditRepository{db: db},
		paper:    &paperRepository{db: db},
	}
}

func (r *repository) Exam() repositories.ExamRepository             { return r.exam }
func (r *repository) Question() repositories.QuestionRepository     { return r.question }
func (r *repository) Attempt() repositories.AttemptRepository       { return r.attempt }
func (r *repository) Response() repositories.ResponseRepository     { return r.response }
func (r *repository) GradeAudit() repositories.GradeAuditRepository { return r.audit }
func (r *repository) Paper() repositories.PaperRepository           { return r.paper }

// WithTransaction runs fn while holding the transaction lock and restores
// the previous state when fn fails or panics.
func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.db.txMutex.Lock()
	defer r.db.txMutex.Unlock()

	r.db.mutex.RLock()
	snapshot := r.db.tables.clone()
	r.db.mutex.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			r.db.restore(snapshot)
			panic(p)
		}
		if err != nil {
			r.db.restore(snapshot)
		}
	}()

	return fn(txHandle)
}

// txHandle is the tx passed to fn by WithTransaction. Its only meaning is
// "inside a transaction"; the memory tables never use it as a connection.
var txHandle = new(gorm.DB)

// lockWrite takes the table write lock and returns its release. A write
// without a tx also waits for the running transaction, so a rollback cannot
// discard it.
func (db *DB) lockWrite(tx *gorm.DB) func() {
	if tx == nil {
		db.txMutex.Lock()
	}
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		if tx == nil {
			db.txMutex.Unlock()
		}
	}
}

func (db *DB) restore(snapshot tables) {
	db.mutex.Lock()
	db.tables = snapshot
	db.mutex.Unlock()
}
