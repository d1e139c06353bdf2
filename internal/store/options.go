package store

import (
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByID
	SortByModifiedTime
	SortByCreatedTime
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type SubmissionQueryFilter BaseQuerier

func NewSubmissionQueryFilter() *SubmissionQueryFilter {
	return &SubmissionQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (qf *SubmissionQueryFilter) ByStatus(statuses ...model.SubmissionStatus) *SubmissionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return qf
}

// ByReceipt matches the exact receipt; a nil receipt matches rows without one.
func (qf *SubmissionQueryFilter) ByReceipt(receipt *string) *SubmissionQueryFilter {
	qf.QueryFn = append(qf.QueryFn, func(tx *gorm.DB) *gorm.DB {
		if receipt == nil {
			return tx.Where("receipt IS NULL")
		}
		return tx.Where("receipt = ?", *receipt)
	})
	return qf
}

type SubmissionQueryOptions BaseQuerier

func NewSubmissionQueryOptions() *SubmissionQueryOptions {
	return &SubmissionQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *SubmissionQueryOptions) WithSortOrder(sort SortOrder) *SubmissionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByID:
			return tx.Order("id")
		case SortByModifiedTime:
			return tx.Order("modified")
		case SortByCreatedTime:
			return tx.Order("created")
		default:
			return tx
		}
	})
	return o
}

func (o *SubmissionQueryOptions) WithLimit(limit int) *SubmissionQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}
