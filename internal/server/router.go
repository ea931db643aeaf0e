package server

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/ai"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/config"
	"smart-tasks-backend/internal/dailycontext"
	"smart-tasks-backend/internal/httpapi"
	"smart-tasks-backend/internal/tasks"
)

const apiPrefix = "/api/v1"

type Deps struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Tokens   auth.Tokens
	Tracker  *ai.Tracker
	Tasks    *tasks.Handlers
	Contexts *dailycontext.Handlers
}

// NewRouter builds the full route table wrapped in recovery, request
// logging and CORS.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	mux := http.NewServeMux()
	authed := auth.NewMiddleware(d.Tokens).Wrap

	handle := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+apiPrefix+path, authed(h))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpapi.OK(w, map[string]string{"status": "ok"})
	})

	// auth
	mux.HandleFunc("POST "+apiPrefix+"/auth/register", auth.RegisterHandler(d.DB, d.Tokens))
	mux.HandleFunc("POST "+apiPrefix+"/auth/login", auth.LoginHandler(d.DB, d.Tokens))
	handle("GET /auth/me", auth.MeHandler(d.DB))
	handle("POST /auth/logout", auth.LogoutHandler())
	handle("DELETE /auth/account", auth.DeleteAccountHandler(d.DB))

	// tasks
	t := d.Tasks
	handle("GET /tasks", t.List)
	handle("POST /tasks", t.Create)
	handle("GET /tasks/overdue", t.Overdue)
	handle("GET /tasks/high_priority", t.HighPriority)
	handle("GET /tasks/by_status", t.ByStatus)
	handle("GET /tasks/dashboard_stats", t.DashboardStats)
	handle("POST /tasks/bulk_update", t.BulkUpdate)
	handle("POST /tasks/ai_prioritization", t.AIPrioritization)
	handle("GET /tasks/{id}", t.Get)
	handle("PATCH /tasks/{id}", t.Patch)
	handle("PUT /tasks/{id}", t.Put)
	handle("DELETE /tasks/{id}", t.Delete)
	handle("POST /tasks/{id}/mark_completed", t.MarkCompleted)
	handle("POST /tasks/{id}/ai_analysis", t.AIAnalysis)
	handle("GET /tasks/{id}/ai_analysis", t.LatestAnalysis)

	handle("GET /categories", t.ListCategories)
	handle("POST /categories", t.CreateCategory)
	handle("GET /categories/{id}", t.GetCategory)
	handle("PATCH /categories/{id}", t.PatchCategory)
	handle("PUT /categories/{id}", t.PutCategory)
	handle("DELETE /categories/{id}", t.DeleteCategory)

	handle("GET /comments", t.ListComments)
	handle("POST /comments", t.CreateComment)
	handle("GET /comments/{id}", t.GetComment)

	// daily context
	c := d.Contexts
	handle("GET /context/entries", c.List)
	handle("POST /context/entries", c.Create)
	handle("GET /context/entries/pending_processing", c.PendingProcessing)
	handle("GET /context/entries/high_relevance", c.HighRelevance)
	handle("GET /context/entries/with_extracted_tasks", c.WithExtractedTasks)
	handle("GET /context/entries/summary", c.Summary)
	handle("POST /context/entries/bulk_analyze", c.BulkAnalyze)
	handle("GET /context/entries/{id}", c.Get)
	handle("PATCH /context/entries/{id}", c.Patch)
	handle("PUT /context/entries/{id}", c.Put)
	handle("DELETE /context/entries/{id}", c.Delete)
	handle("POST /context/entries/{id}/analyze", c.Analyze)

	handle("GET /context/insights", c.ListInsights)
	handle("POST /context/insights", c.CreateInsight)
	handle("GET /context/insights/actionable", c.ActionableInsights)
	handle("GET /context/insights/high_confidence", c.HighConfidenceInsights)

	// ai
	handle("GET /ai/providers", ai.ProvidersHandler(d.DB))
	handle("GET /ai/requests", ai.ListRequestsHandler(d.Tracker))
	handle("GET /ai/requests/{id}", ai.GetRequestHandler(d.Tracker))
	handle("POST /ai/requests/{id}/retry", ai.RetryRequestHandler(d.Tracker))
	handle("GET /ai/performance", ai.PerformanceHandler(d.DB))

	corsMW := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id", "Idempotency-Key", "X-Source-Event-Key"},
		ExposedHeaders:   []string{"X-AI-Error", "X-Request-Id"},
		AllowCredentials: true,
	})

	var h http.Handler = mux
	h = httpapi.Recover(d.Log, h)
	h = httpapi.RequestLogger(d.Log, h)
	return corsMW.Handler(h)
}
