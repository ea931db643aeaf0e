package ai

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Observe folds one finished request into the rollup. Requests without a
// processing time or confidence leave the matching average untouched.
func (p *ModelPerformance) Observe(req *Request) {
	p.TotalRequests++
	if req.Status == StatusCompleted {
		p.SuccessfulRequests++
	} else {
		p.FailedRequests++
	}

	if req.ProcessingTime != nil {
		p.ProcessingTimeSamples++
		p.AverageProcessingTime = incrementalMean(p.AverageProcessingTime, *req.ProcessingTime, p.ProcessingTimeSamples)
	}
	if req.ConfidenceScore != nil {
		p.ConfidenceSamples++
		p.AverageConfidenceScore = incrementalMean(p.AverageConfidenceScore, *req.ConfidenceScore, p.ConfidenceSamples)
	}

	if req.CostEstimate != nil {
		p.TotalCost += *req.CostEstimate
	}
	p.TotalTokensUsed += int64(req.TokenUsage.Data().TotalTokens)
}

const perfTable = "ai_model_performances"

func incrementalMean(avg, v float64, n int) float64 {
	return avg + (v-avg)/float64(n)
}

// rollupDay is the UTC calendar day a request finished on.
func rollupDay(t time.Time) datatypes.Date {
	u := t.UTC()
	return datatypes.Date(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC))
}

// recordOutcome upserts the daily rollup for a request that just reached a
// terminal state. It must run in the transaction that stored the transition.
// Counters and means are folded in by the database so concurrent writers to
// the same day never overwrite each other.
func recordOutcome(tx *gorm.DB, req *Request) error {
	perf := ModelPerformance{
		ProviderID:  req.ProviderID,
		ModelName:   req.ModelName,
		RequestType: req.RequestType,
		Date:        rollupDay(*req.CompletedAt),
	}
	perf.Observe(req)

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_id"}, {Name: "model_name"}, {Name: "request_type"}, {Name: "date"},
		},
		DoUpdates: clause.Assignments(rollupIncrements(req)),
	}).Create(&perf).Error
}

// rollupIncrements is Observe expressed over the stored row.
func rollupIncrements(req *Request) map[string]any {
	col := func(name string) string { return perfTable + "." + name }

	set := map[string]any{
		"total_requests":    gorm.Expr(col("total_requests") + " + 1"),
		"total_tokens_used": gorm.Expr(col("total_tokens_used")+" + ?", int64(req.TokenUsage.Data().TotalTokens)),
		"updated_at":        gorm.Expr("?", req.CompletedAt.UTC()),
	}
	if req.Status == StatusCompleted {
		set["successful_requests"] = gorm.Expr(col("successful_requests") + " + 1")
	} else {
		set["failed_requests"] = gorm.Expr(col("failed_requests") + " + 1")
	}
	if req.CostEstimate != nil {
		set["total_cost"] = gorm.Expr(col("total_cost")+" + ?", int64(*req.CostEstimate))
	}
	if req.ProcessingTime != nil {
		set["processing_time_samples"] = gorm.Expr(col("processing_time_samples") + " + 1")
		set["average_processing_time"] = meanExpr(col("average_processing_time"), col("processing_time_samples"), *req.ProcessingTime)
	}
	if req.ConfidenceScore != nil {
		set["confidence_samples"] = gorm.Expr(col("confidence_samples") + " + 1")
		set["average_confidence_score"] = meanExpr(col("average_confidence_score"), col("confidence_samples"), *req.ConfidenceScore)
	}
	return set
}

// meanExpr is incrementalMean in SQL; samples is the count before this value.
func meanExpr(avg, samples string, v float64) clause.Expr {
	return gorm.Expr(avg+" + (? - "+avg+") / ("+samples+" + 1.0)", v)
}

type PerformanceFilter struct {
	ProviderID  uint
	ModelName   string
	RequestType string
	From        *time.Time
	To          *time.Time
}

// ListPerformance returns rollups newest day first.
func ListPerformance(ctx context.Context, db *gorm.DB, f PerformanceFilter) ([]ModelPerformance, error) {
	q := db.WithContext(ctx).Model(&ModelPerformance{})
	if f.ProviderID != 0 {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if f.ModelName != "" {
		q = q.Where("model_name = ?", f.ModelName)
	}
	if f.RequestType != "" {
		q = q.Where("request_type = ?", f.RequestType)
	}
	if f.From != nil {
		q = q.Where("date >= ?", rollupDay(*f.From))
	}
	if f.To != nil {
		q = q.Where("date <= ?", rollupDay(*f.To))
	}

	out := []ModelPerformance{}
	err := q.Order("date DESC").Order("id").Find(&out).Error
	return out, err
}
