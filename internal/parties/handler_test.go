package parties_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bananalabs-oss/sleigh/internal/database"
	"github.com/bananalabs-oss/sleigh/internal/matching"
	"github.com/bananalabs-oss/sleigh/internal/parties"
	"github.com/bananalabs-oss/sleigh/internal/phrase"
	"github.com/bananalabs-oss/sleigh/internal/scheduler"
	"github.com/bananalabs-oss/sleigh/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect("sqlite://" + filepath.Join(t.TempDir(), "sleigh_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	st := store.New(db)
	sched := scheduler.New(st)
	t.Cleanup(sched.Stop)

	h := parties.NewHandler(st, sched)
	r := gin.New()
	r.POST("/internal/parties", h.CreateParty)
	r.POST("/internal/parties/join", h.JoinParty)
	r.GET("/internal/parties/assignments/:userId", h.GetAssignments)
	return r, st
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func createParty(t *testing.T, r *gin.Engine, window string) (joinPhrase string) {
	t.Helper()
	w, body := doJSON(t, r, http.MethodPost, "/internal/parties", gin.H{
		"admin_id":      "admin-1",
		"name":          "Holiday Exchange",
		"signup_window": window,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	joinPhrase, _ = body["join_phrase"].(string)
	require.NotEmpty(t, joinPhrase)
	return joinPhrase
}

func TestCreatePartyReturnsUsablePhrase(t *testing.T) {
	r, st := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodPost, "/internal/parties", gin.H{
		"admin_id":      "admin-1",
		"name":          "Holiday Exchange",
		"signup_window": "48h",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// The returned phrase must decode back to the stored party.
	seed, err := phrase.Decode(body["join_phrase"].(string))
	require.NoError(t, err)
	partyID, err := uuid.Parse(body["party_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, partyID, phrase.PartyID(seed))

	party, err := st.GetParty(context.Background(), partyID)
	require.NoError(t, err)
	assert.Equal(t, "Holiday Exchange", party.Name)
	assert.False(t, party.MatchesMade)
}

func TestCreatePartyValidation(t *testing.T) {
	r, _ := newTestAPI(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing fields", gin.H{"admin_id": "a"}},
		{"unparseable window", gin.H{"admin_id": "a", "name": "n", "signup_window": "next tuesday"}},
		{"negative window", gin.H{"admin_id": "a", "name": "n", "signup_window": "-1h"}},
		{"zero window", gin.H{"admin_id": "a", "name": "n", "signup_window": "0s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := doJSON(t, r, http.MethodPost, "/internal/parties", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request", body["error"])
		})
	}
}

func TestJoinParty(t *testing.T) {
	r, _ := newTestAPI(t)
	joinPhrase := createParty(t, r, "1h")

	w, body := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": joinPhrase,
		"user_id":     "user-1",
		"name":        "QWxpY2U=",
		"hint":        "c29ja3M=",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Holiday Exchange", body["party_name"])

	// Same user again: rejected without clobbering the first signup.
	w, body = doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": joinPhrase,
		"user_id":     "user-1",
		"name":        "other",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_joined", body["error"])
}

func TestJoinPartyMalformedPhrase(t *testing.T) {
	r, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": "not a real phrase",
		"user_id":     "user-1",
		"name":        "QWxpY2U=",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_phrase", body["error"])
}

func TestJoinPartyUnknownPhrase(t *testing.T) {
	r, _ := newTestAPI(t)
	createParty(t, r, "1h")

	// Well-formed phrase whose derived identifier matches no stored party:
	// distinct from a malformed one.
	w, body := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": phrase.Encode(0x0badf00d),
		"user_id":     "user-1",
		"name":        "QWxpY2U=",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestJoinPartyClosed(t *testing.T) {
	r, _ := newTestAPI(t)
	joinPhrase := createParty(t, r, "1ms")
	time.Sleep(20 * time.Millisecond)

	w, body := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": joinPhrase,
		"user_id":     "user-1",
		"name":        "QWxpY2U=",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "party_closed", body["error"])
}

func TestAssignmentsLifecycle(t *testing.T) {
	r, st := newTestAPI(t)
	joinPhrase := createParty(t, r, "1h")

	users := []string{"user-1", "user-2", "user-3"}
	for _, uid := range users {
		w, _ := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
			"join_phrase": joinPhrase,
			"user_id":     uid,
			"name":        "name-" + uid,
			"hint":        "hint-" + uid,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Before the deadline the party reports pending with its resolve time.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/parties/assignments/user-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pending []parties.Assignment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, parties.StatusPending, pending[0].Status)
	require.NotNil(t, pending[0].ResolvesAt)

	// Resolve directly (the scheduler's timer is an hour out).
	seed, err := phrase.Decode(joinPhrase)
	require.NoError(t, err)
	require.NoError(t, matching.Resolve(context.Background(), st, phrase.PartyID(seed)))

	for _, uid := range users {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/parties/assignments/"+uid, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var matched []parties.Assignment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matched))
		require.Len(t, matched, 1)
		assert.Equal(t, parties.StatusMatched, matched[0].Status)
		assert.NotEmpty(t, matched[0].ReceiverName)
		assert.NotEqual(t, "name-"+uid, matched[0].ReceiverName, "matched with self")
	}
}

func TestAssignmentsUnmatchedParty(t *testing.T) {
	r, st := newTestAPI(t)
	joinPhrase := createParty(t, r, "1h")

	w, _ := doJSON(t, r, http.MethodPost, "/internal/parties/join", gin.H{
		"join_phrase": joinPhrase,
		"user_id":     "user-1",
		"name":        "QWxpY2U=",
	})
	require.Equal(t, http.StatusOK, w.Code)

	seed, err := phrase.Decode(joinPhrase)
	require.NoError(t, err)
	require.NoError(t, matching.Resolve(context.Background(), st, phrase.PartyID(seed)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/parties/assignments/user-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []parties.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, parties.StatusUnmatched, got[0].Status)
}

func TestAssignmentsEmpty(t *testing.T) {
	r, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/parties/assignments/nobody", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
