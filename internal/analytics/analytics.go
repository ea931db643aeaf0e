package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

// Event is one stored analytics row.
type Event struct {
	ID             uint           `gorm:"primaryKey"`
	EventName      string         `gorm:"size:64;index;not null"`
	EventTime      time.Time      `gorm:"index;not null"`
	UserID         uint           `gorm:"index;not null"`
	SessionID      *string        `gorm:"size:128"`
	Platform       string         `gorm:"size:16"`
	AppVersion     string         `gorm:"size:32"`
	DeviceLocale   *string        `gorm:"size:64"`
	SourceEventKey *string        `gorm:"size:128;uniqueIndex"`
	Properties     datatypes.JSON `gorm:"not null"`
}

func (Event) TableName() string { return "analytics_events" }

// Envelope is what we store with every event.
type Envelope struct {
	UserID       uint
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uint, bool) {
	uid, ok := ctx.Value(ctxUserIDKey).(uint)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// A duplicate key makes Log a no-op.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder writes events for one request. It is best-effort: failures are
// logged and never reach the caller.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Track is the handler shortcut: envelope and idempotency key come from r.
func (rec *Recorder) Track(r *http.Request, eventName string, props map[string]any) {
	if rec == nil {
		return
	}
	_ = Log(r.Context(), rec.db, FromRequest(r), eventName, props, SourceEventKeyFromRequest(r))
}

// Log inserts one analytics event.
// Never logs sensitive raw text; caller passes sanitized props.
func Log(ctx context.Context, db *gorm.DB, env Envelope, eventName string, props any, sourceEventKey string) error {
	if eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		userID = uid
	}

	b, err := json.Marshal(props)
	if err != nil {
		// if props can't marshal, don't break core flow
		return nil
	}

	ev := Event{
		EventName:      eventName,
		EventTime:      time.Now().UTC(),
		UserID:         userID,
		SessionID:      nullIfEmpty(env.SessionID),
		Platform:       env.Platform,
		AppVersion:     env.AppVersion,
		DeviceLocale:   nullIfEmpty(env.DeviceLocale),
		SourceEventKey: nullIfEmpty(sourceEventKey),
		Properties:     datatypes.JSON(b),
	}

	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_key"}}, DoNothing: true}).
		Create(&ev).Error
	if err != nil {
		zap.L().Warn("analytics event dropped", zap.String("event", eventName), zap.Error(err))
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// TierFromScore buckets a 0..100 priority score.
func TierFromScore(score float64) string {
	switch {
	case score >= 70:
		return "P1"
	case score >= 40:
		return "P2"
	default:
		return "P3"
	}
}
