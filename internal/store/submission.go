package store

import (
	"context"
	"errors"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"gorm.io/gorm"
)

type Submission interface {
	List(ctx context.Context, filter *SubmissionQueryFilter, opts *SubmissionQueryOptions) (model.SubmissionList, error)
	Get(ctx context.Context, id uint) (*model.Submission, error)
	Create(ctx context.Context, submission model.Submission) (*model.Submission, error)
	Update(ctx context.Context, submission model.Submission) (*model.Submission, error)
	UpdateStatus(ctx context.Context, id uint, status model.SubmissionStatus, modified time.Time, cond *SubmissionQueryFilter) (*model.Submission, error)
	Delete(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context) (map[model.SubmissionStatus]int, error)
}

type SubmissionStore struct {
	db *gorm.DB
}

// Make sure we conform to Submission interface
var _ Submission = (*SubmissionStore)(nil)

func NewSubmissionStore(db *gorm.DB) Submission {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) List(ctx context.Context, filter *SubmissionQueryFilter, opts *SubmissionQueryOptions) (model.SubmissionList, error) {
	var submissions model.SubmissionList
	tx := s.getDB(ctx).Model(&submissions)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts == nil {
		opts = NewSubmissionQueryOptions().WithSortOrder(SortByID)
	}
	for _, fn := range opts.QueryFn {
		tx = fn(tx)
	}

	if err := tx.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (s *SubmissionStore) Get(ctx context.Context, id uint) (*model.Submission, error) {
	var submission model.Submission
	result := s.getDB(ctx).First(&submission, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, result.Error
	}
	return &submission, nil
}

func (s *SubmissionStore) Create(ctx context.Context, submission model.Submission) (*model.Submission, error) {
	result := s.getDB(ctx).Create(&submission)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	return &submission, nil
}

// Update writes receipt, status and modified of an existing submission in a single statement.
func (s *SubmissionStore) Update(ctx context.Context, submission model.Submission) (*model.Submission, error) {
	result := s.getDB(ctx).
		Model(&model.Submission{}).
		Where("id = ?", submission.ID).
		Select("receipt", "status", "modified").
		Updates(map[string]any{
			"receipt":  submission.Receipt,
			"status":   submission.Status,
			"modified": submission.Modified,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return s.Get(ctx, submission.ID)
}

// UpdateStatus sets status and modified together. When cond is set, the row is only
// updated if it still matches cond; otherwise ErrPreconditionFailed is returned.
func (s *SubmissionStore) UpdateStatus(ctx context.Context, id uint, status model.SubmissionStatus, modified time.Time, cond *SubmissionQueryFilter) (*model.Submission, error) {
	tx := s.getDB(ctx).Model(&model.Submission{}).Where("id = ?", id)
	if cond != nil {
		for _, fn := range cond.QueryFn {
			tx = fn(tx)
		}
	}

	result := tx.Updates(map[string]any{
		"status":   status,
		"modified": modified,
	})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrPreconditionFailed
	}

	return s.Get(ctx, id)
}

func (s *SubmissionStore) Delete(ctx context.Context, id uint) error {
	result := s.getDB(ctx).Delete(&model.Submission{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SubmissionStore) CountByStatus(ctx context.Context) (map[model.SubmissionStatus]int, error) {
	var rows []struct {
		Status model.SubmissionStatus
		Count  int
	}

	err := s.getDB(ctx).
		Model(&model.Submission{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.SubmissionStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *SubmissionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
