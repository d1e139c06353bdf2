package store

import (
	"context"

	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Submission() Submission
	Statistics(ctx context.Context) (model.SubmissionStats, error)
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db         *gorm.DB
	submission Submission
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		submission: NewSubmissionStore(db),
		db:         db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Submission() Submission {
	return s.submission
}

func (s *DataStore) Statistics(ctx context.Context) (model.SubmissionStats, error) {
	counts, err := s.Submission().CountByStatus(ctx)
	if err != nil {
		return model.SubmissionStats{}, err
	}
	return model.NewSubmissionStats(counts), nil
}

// InitialMigration creates the schema from the gorm models. It is used by sqlite
// deployments and tests; postgres deployments run the goose migrations.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Submission{})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
