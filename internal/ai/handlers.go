package ai

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/httpapi"
)

func ProvidersHandler(dbx *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.Caller(w, r); !ok {
			return
		}

		out, err := ListProviders(r.Context(), dbx)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		httpapi.OK(w, out)
	}
}

func ListRequestsHandler(tr *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.Caller(w, r)
		if !ok {
			return
		}

		f := RequestFilter{
			RequestType: httpapi.QueryString(r, "request_type"),
			Status:      httpapi.QueryString(r, "status"),
		}
		v := &apperr.ValidationError{}
		if f.RequestType != "" && !ValidRequestType(f.RequestType) {
			v.Add("request_type", "unknown request type")
		}
		if f.Status != "" && f.Status != StatusPending && f.Status != StatusProcessing && !IsTerminal(f.Status) {
			v.Add("status", "unknown status")
		}
		if err := v.OrNil(); err != nil {
			httpapi.Error(w, r, err)
			return
		}

		out, err := tr.List(r.Context(), uid, f)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		httpapi.OK(w, out)
	}
}

func GetRequestHandler(tr *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.Caller(w, r)
		if !ok {
			return
		}
		id, err := httpapi.PathID(r, "id")
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		req, err := tr.Get(r.Context(), uid, id)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		httpapi.OK(w, req)
	}
}

func RetryRequestHandler(tr *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.Caller(w, r)
		if !ok {
			return
		}
		id, err := httpapi.PathID(r, "id")
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		req, err := tr.Retry(r.Context(), uid, id)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		httpapi.JSON(w, http.StatusCreated, req)
	}
}

func PerformanceHandler(dbx *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.Caller(w, r); !ok {
			return
		}

		providerID, _, err := httpapi.QueryUint(r, "provider")
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		f := PerformanceFilter{
			ProviderID:  providerID,
			ModelName:   httpapi.QueryString(r, "model_name"),
			RequestType: httpapi.QueryString(r, "request_type"),
		}

		v := &apperr.ValidationError{}
		f.From = queryDate(r, "from", v)
		f.To = queryDate(r, "to", v)
		if err := v.OrNil(); err != nil {
			httpapi.Error(w, r, err)
			return
		}

		out, err := ListPerformance(r.Context(), dbx, f)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}
		httpapi.OK(w, out)
	}
}

func queryDate(r *http.Request, name string, v *apperr.ValidationError) *time.Time {
	raw := httpapi.QueryString(r, name)
	if raw == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		v.Add(name, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &d
}
