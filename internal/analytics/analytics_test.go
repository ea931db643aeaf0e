package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"smart-tasks-backend/internal/testutil"
)

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Platform", "iOS")
	r.Header.Set("X-Device-Locale", "ru-RU")
	r.Header.Set("X-Session-Id", "s-1")

	env := FromRequest(r)
	require.Equal(t, "ios", env.Platform)
	require.Equal(t, "ru-RU", env.DeviceLocale)
	require.Equal(t, "s-1", env.SessionID)

	r.Header.Set("X-Platform", "toaster")
	require.Equal(t, "unknown", FromRequest(r).Platform)
}

func TestLogDeduplicatesBySourceKey(t *testing.T) {
	db := testutil.NewTestDB(t, &Event{})
	ctx := context.Background()

	env := Envelope{UserID: 7, Platform: "web"}
	require.NoError(t, Log(ctx, db, env, "task_created", map[string]any{"task_id": 1}, "key-1"))
	require.NoError(t, Log(ctx, db, env, "task_created", map[string]any{"task_id": 1}, "key-1"))
	require.NoError(t, Log(ctx, db, env, "task_created", map[string]any{"task_id": 2}, ""))

	var n int64
	require.NoError(t, db.Model(&Event{}).Count(&n).Error)
	require.EqualValues(t, 2, n)
}

func TestLogSkipsAnonymous(t *testing.T) {
	db := testutil.NewTestDB(t, &Event{})

	require.NoError(t, Log(context.Background(), db, Envelope{}, "task_created", nil, ""))

	var n int64
	require.NoError(t, db.Model(&Event{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestLogUsesContextUser(t *testing.T) {
	db := testutil.NewTestDB(t, &Event{})
	ctx := WithUserID(context.Background(), 3)

	require.NoError(t, Log(ctx, db, Envelope{}, "context_analyzed", map[string]any{"ok": true}, ""))

	var ev Event
	require.NoError(t, db.First(&ev).Error)
	require.EqualValues(t, 3, ev.UserID)
	require.JSONEq(t, `{"ok":true}`, string(ev.Properties))
}

func TestTierFromScore(t *testing.T) {
	require.Equal(t, "P1", TierFromScore(70))
	require.Equal(t, "P2", TierFromScore(69.9))
	require.Equal(t, "P2", TierFromScore(40))
	require.Equal(t, "P3", TierFromScore(39))
}
