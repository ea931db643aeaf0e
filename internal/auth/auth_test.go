package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smart-tasks-backend/internal/testutil"
)

var testTokens = Tokens{Secret: []byte("test-secret"), TTL: time.Hour}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := testTokens.Generate(42)
	require.NoError(t, err)

	uid, err := testTokens.Parse(tok)
	require.NoError(t, err)
	require.EqualValues(t, 42, uid)

	_, err = Tokens{Secret: []byte("other"), TTL: time.Hour}.Parse(tok)
	require.Error(t, err)

	expired, err := Tokens{Secret: testTokens.Secret, TTL: -time.Minute}.Generate(42)
	require.NoError(t, err)
	_, err = testTokens.Parse(expired)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var seen uint
	h := NewMiddleware(testTokens).Wrap(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := Caller(w, r)
		require.True(t, ok)
		seen = uid
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := testTokens.Generate(7)
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.EqualValues(t, 7, seen)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	gdb := testutil.NewTestDB(t, &User{})

	rec := post(RegisterHandler(gdb, testTokens), `{"email":"Ana@Example.com","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(RegisterHandler(gdb, testTokens), `{"email":"Ana@Example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var u User
	require.NoError(t, gdb.First(&u).Error)
	require.Equal(t, "ana@example.com", u.Email)
	require.Equal(t, "ana", u.Username)
	require.NotEqual(t, "long-enough", u.Password)

	rec = post(RegisterHandler(gdb, testTokens), `{"email":"ana@example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(LoginHandler(gdb, testTokens), `{"email":"ana@example.com","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(LoginHandler(gdb, testTokens), `{"email":"ANA@example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		UserID uint   `json:"user_id"`
		Token  string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, u.ID, out.UserID)

	uid, err := testTokens.Parse(out.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, uid)
}

func TestMe(t *testing.T) {
	gdb := testutil.NewTestDB(t, &User{})
	u := User{Username: "ana", Email: "ana@example.com", Password: "x"}
	require.NoError(t, gdb.Create(&u).Error)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithUserID(r.Context(), u.ID))
	rec := httptest.NewRecorder()
	MeHandler(gdb)(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"user_id":1,"email":"ana@example.com","username":"ana"}`, rec.Body.String())

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithUserID(r.Context(), 99))
	rec = httptest.NewRecorder()
	MeHandler(gdb)(rec, r)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAccountRemovesOnlyCallerRows(t *testing.T) {
	gdb := testutil.NewTestDB(t, &User{})
	for _, stmt := range []string{
		`CREATE TABLE tasks (id INTEGER PRIMARY KEY, assigned_to_id INTEGER)`,
		`CREATE TABLE task_comments (id INTEGER PRIMARY KEY, task_id INTEGER)`,
		`CREATE TABLE task_ai_analyses (id INTEGER PRIMARY KEY, task_id INTEGER)`,
		`CREATE TABLE context_entries (id INTEGER PRIMARY KEY, user_id INTEGER)`,
		`CREATE TABLE context_insights (id INTEGER PRIMARY KEY, context_entry_id INTEGER)`,
		`CREATE TABLE context_processing_logs (id INTEGER PRIMARY KEY, context_entry_id INTEGER)`,
		`CREATE TABLE ai_requests (id INTEGER PRIMARY KEY, user_id INTEGER)`,
		`CREATE TABLE analytics_events (id INTEGER PRIMARY KEY, user_id INTEGER)`,
	} {
		require.NoError(t, gdb.Exec(stmt).Error)
	}

	ana := User{Username: "ana", Email: "ana@example.com", Password: "x"}
	bob := User{Username: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, gdb.Create(&ana).Error)
	require.NoError(t, gdb.Create(&bob).Error)
	require.NoError(t, gdb.Exec(`INSERT INTO tasks (id, assigned_to_id) VALUES (1, ?), (2, ?)`, ana.ID, bob.ID).Error)
	require.NoError(t, gdb.Exec(`INSERT INTO task_comments (task_id) VALUES (1), (2)`).Error)

	require.NoError(t, DeleteAccount(context.Background(), gdb, ana.ID))

	var n int64
	require.NoError(t, gdb.Model(&User{}).Count(&n).Error)
	require.EqualValues(t, 1, n)
	require.NoError(t, gdb.Table("tasks").Count(&n).Error)
	require.EqualValues(t, 1, n)
	require.NoError(t, gdb.Table("task_comments").Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestRegisterDerivesDistinctUsernames(t *testing.T) {
	gdb := testutil.NewTestDB(t, &User{})

	for _, email := range []string{"john@a.com", "john@b.com", "john@c.com"} {
		rec := post(RegisterHandler(gdb, testTokens), `{"email":"`+email+`","password":"long-enough"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var names []string
	require.NoError(t, gdb.Model(&User{}).Order("id").Pluck("username", &names).Error)
	require.Equal(t, []string{"john", "john2", "john3"}, names)

	rec := post(RegisterHandler(gdb, testTokens), `{"email":"john@a.com","password":"long-enough"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	gdb := testutil.NewTestDB(t, &User{})

	rec := post(RegisterHandler(gdb, testTokens), `{"email":"ana@example.com","password":"`+strings.Repeat("a", 80)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "password")

	// 40 characters but 80 bytes
	rec = post(RegisterHandler(gdb, testTokens), `{"email":"ana@example.com","password":"`+strings.Repeat("é", 40)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "password")

	rec = post(RegisterHandler(gdb, testTokens), `{"email":"ana@example.com","password":"`+strings.Repeat("a", 72)+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
