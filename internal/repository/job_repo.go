package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kweiss/applyflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository handles job record data operations.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.JobRecord) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Upsert creates or updates a job record keyed by its primary identifier.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *JobRepository) Upsert(ctx context.Context, job *domain.JobRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "primary_identifier"}},
		UpdateAll: true,
	}).Create(job).Error
}

// GetByID retrieves a job record by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
// Returns:
//   - *domain.JobRecord: job record if found.
//   - error: non-nil if lookup fails.
func (r *JobRepository) GetByID(ctx context.Context, id uint) (*domain.JobRecord, error) {
	var job domain.JobRecord
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByPrimaryID retrieves a job record by its primary identifier.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - primaryID: unique identifier of the posting, usually its canonical URL.
// Returns:
//   - *domain.JobRecord: job record if found.
//   - error: non-nil if lookup fails.
func (r *JobRepository) GetByPrimaryID(ctx context.Context, primaryID string) (*domain.JobRecord, error) {
	var job domain.JobRecord
	if err := r.db.WithContext(ctx).First(&job, "primary_identifier = ?", primaryID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByStatuses retrieves job records in any of the given statuses, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - statuses: statuses to filter by.
//   - limit: maximum number of records to return; 0 means no limit.
// Returns:
//   - []domain.JobRecord: matching job records ordered by creation time.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByStatuses(ctx context.Context, statuses []domain.JobStatus, limit int) ([]domain.JobRecord, error) {
	var jobs []domain.JobRecord
	query := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateStatus sets a job's status and reason in a single update.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
//   - status: new status.
//   - reason: human-readable explanation for the transition; empty clears it.
// Returns:
//   - error: non-nil if the update fails or the record does not exist.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uint, status domain.JobStatus, reason string) error {
	result := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job record %d not found", id)
	}
	return nil
}

// UpdateFields applies a partial update to a job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
//   - fields: column name to value map.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// MarkAttempted stamps the last attempt time on a job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record ID.
//   - at: attempt timestamp.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkAttempted(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("id = ?", id).
		Update("last_attempted_at", at).Error
}

// CountByStatus counts job records by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status to count.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// StatusCounts returns the number of job records per status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - map[domain.JobStatus]int64: record count keyed by status.
//   - error: non-nil if the query fails.
func (r *JobRepository) StatusCounts(ctx context.Context) (map[domain.JobStatus]int64, error) {
	type row struct {
		Status domain.JobStatus
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// List retrieves job records with optional status filter and pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status to filter by; empty means all.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.JobRecord: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) List(ctx context.Context, status domain.JobStatus, limit, offset int) ([]domain.JobRecord, error) {
	var jobs []domain.JobRecord
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
