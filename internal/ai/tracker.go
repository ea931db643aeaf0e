package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
)

// ErrScorerFailed wraps a scorer error after it has been recorded on the
// request. Callers treat it as a soft failure of the surrounding operation.
var ErrScorerFailed = errors.New("ai scorer failed")

// Tracker owns the lifecycle of Request rows:
// pending -> processing -> completed | failed | timeout.
type Tracker struct {
	db       *gorm.DB
	log      *zap.Logger
	provider *Provider
	model    string
	now      func() time.Time
}

func NewTracker(gdb *gorm.DB, log *zap.Logger, provider *Provider, model string) *Tracker {
	return &Tracker{
		db:       gdb,
		log:      log,
		provider: provider,
		model:    model,
		now:      db.Now,
	}
}

// Provider is the provider new requests are attributed to.
func (t *Tracker) Provider() *Provider { return t.provider }

type Submission struct {
	UserID         uint
	RequestType    string
	PromptTemplate string
	Input          any
}

// Submit stores a new pending request.
func (t *Tracker) Submit(ctx context.Context, s Submission) (*Request, error) {
	v := &apperr.ValidationError{}
	if !ValidRequestType(s.RequestType) {
		v.Add("request_type", "unknown request type")
	}
	if s.Input == nil {
		v.Add("input_data", "this field is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(s.Input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	req := &Request{
		UserID:         s.UserID,
		ProviderID:     t.provider.ID,
		RequestType:    s.RequestType,
		Status:         StatusPending,
		InputData:      datatypes.JSON(raw),
		PromptTemplate: s.PromptTemplate,
		ModelName:      t.model,
	}
	if err := t.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// MarkProcessing moves a pending request to processing.
func (t *Tracker) MarkProcessing(ctx context.Context, id uint) (*Request, error) {
	var req Request
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRequest(tx, id, &req); err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("request %d is %s: %w", id, req.Status, apperr.ErrConflict)
		}
		req.Status = StatusProcessing
		return tx.Model(&req).Update("status", req.Status).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type Outcome struct {
	Response       any
	ProcessingTime *float64
	Usage          Usage
}

// MarkCompleted stores the response verbatim and closes the request. It is
// accepted from pending as well as processing.
func (t *Tracker) MarkCompleted(ctx context.Context, id uint, out Outcome) (*Request, error) {
	raw, err := json.Marshal(out.Response)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}

	return t.finish(ctx, id, func(req *Request) {
		req.Status = StatusCompleted
		req.ResponseData = datatypes.JSON(raw)
		req.ProcessingTime = out.ProcessingTime
		req.ConfidenceScore = out.Usage.Confidence
		req.TokenUsage = datatypes.NewJSONType(out.Usage.Tokens)
		cost := out.Usage.Cost
		req.CostEstimate = &cost
	})
}

// MarkFailed records the error and closes the request. retry_count is left
// alone; Retry is the only thing that bumps it.
func (t *Tracker) MarkFailed(ctx context.Context, id uint, message string, processingTime *float64) (*Request, error) {
	return t.finish(ctx, id, func(req *Request) {
		req.Status = StatusFailed
		req.ErrorMessage = message
		req.ProcessingTime = processingTime
	})
}

// MarkTimeout closes a request that ran past its deadline. Nothing in the
// process enforces deadlines; ExpireStale is the external caller.
func (t *Tracker) MarkTimeout(ctx context.Context, id uint) (*Request, error) {
	return t.finish(ctx, id, func(req *Request) {
		req.Status = StatusTimeout
		req.ErrorMessage = "request timed out"
	})
}

func (t *Tracker) finish(ctx context.Context, id uint, apply func(*Request)) (*Request, error) {
	var req Request
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRequest(tx, id, &req); err != nil {
			return err
		}
		if IsTerminal(req.Status) {
			return fmt.Errorf("request %d is already %s: %w", id, req.Status, apperr.ErrConflict)
		}

		apply(&req)
		now := t.now()
		req.CompletedAt = &now

		if err := tx.Save(&req).Error; err != nil {
			return err
		}
		return recordOutcome(tx, &req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Retry opens a new pending attempt for a failed or timed-out request owned
// by userID.
func (t *Tracker) Retry(ctx context.Context, userID, id uint) (*Request, error) {
	orig, err := t.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if orig.Status != StatusFailed && orig.Status != StatusTimeout {
		return nil, apperr.Invalid("status", fmt.Sprintf("only failed or timed out requests can be retried, this one is %s", orig.Status))
	}

	req := &Request{
		UserID:         orig.UserID,
		ProviderID:     orig.ProviderID,
		RequestType:    orig.RequestType,
		Status:         StatusPending,
		InputData:      orig.InputData,
		PromptTemplate: orig.PromptTemplate,
		ModelName:      orig.ModelName,
		RetryCount:     orig.RetryCount + 1,
	}
	if err := t.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// ExpireStale marks pending and processing requests created before
// now-olderThan as timed out and returns how many it closed.
func (t *Tracker) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := t.now().Add(-olderThan)

	var ids []uint
	err := t.db.WithContext(ctx).Model(&Request{}).
		Where("status IN ? AND created_at < ?", []string{StatusPending, StatusProcessing}, cutoff).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if _, err := t.MarkTimeout(ctx, id); err != nil {
			// finished concurrently
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		t.log.Info("expired stale ai requests", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Get loads a request owned by userID.
func (t *Tracker) Get(ctx context.Context, userID, id uint) (*Request, error) {
	var req Request
	err := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&req).Error
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("ai request %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type RequestFilter struct {
	RequestType string
	Status      string
}

// List returns the caller's requests, newest first.
func (t *Tracker) List(ctx context.Context, userID uint, f RequestFilter) ([]Request, error) {
	q := t.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.RequestType != "" {
		q = q.Where("request_type = ?", f.RequestType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	out := []Request{}
	err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

// loadRequest reads a request and holds its row lock until tx ends, so
// concurrent transitions of the same request serialize on the status check.
func loadRequest(tx *gorm.DB, id uint, req *Request) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(req, id).Error
	if db.IsNotFound(err) {
		return fmt.Errorf("ai request %d: %w", id, apperr.ErrNotFound)
	}
	return err
}

// Track runs one scorer call under a tracked request: submit, processing,
// then completed or failed. A scorer error is recorded and returned wrapped
// in ErrScorerFailed; any other error is a storage failure.
func Track[T Metered](ctx context.Context, t *Tracker, s Submission, call func(context.Context) (T, error)) (T, *Request, error) {
	var zero T

	req, err := t.Submit(ctx, s)
	if err != nil {
		return zero, nil, err
	}
	if _, err := t.MarkProcessing(ctx, req.ID); err != nil {
		return zero, req, err
	}

	start := time.Now()
	res, callErr := call(ctx)
	elapsed := time.Since(start).Seconds()

	if callErr != nil {
		t.log.Warn("ai call failed",
			zap.Uint("request_id", req.ID),
			zap.String("request_type", s.RequestType),
			zap.Error(callErr),
		)
		failed, err := t.MarkFailed(ctx, req.ID, callErr.Error(), &elapsed)
		if err != nil {
			return zero, req, err
		}
		return zero, failed, fmt.Errorf("%w: %v", ErrScorerFailed, callErr)
	}

	done, err := t.MarkCompleted(ctx, req.ID, Outcome{
		Response:       res,
		ProcessingTime: &elapsed,
		Usage:          res.Metering(),
	})
	if err != nil {
		return zero, req, err
	}
	return res, done, nil
}

// EnsureProvider registers p by name if it is missing and returns the stored row.
func EnsureProvider(ctx context.Context, gdb *gorm.DB, p Provider) (*Provider, error) {
	out := p
	err := gdb.WithContext(ctx).Where("name = ?", p.Name).FirstOrCreate(&out).Error
	if err != nil {
		return nil, fmt.Errorf("ensure ai provider %q: %w", p.Name, err)
	}
	return &out, nil
}

// ListProviders returns every registered provider by name.
func ListProviders(ctx context.Context, gdb *gorm.DB) ([]Provider, error) {
	out := []Provider{}
	err := gdb.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}
