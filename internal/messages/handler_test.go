package messages

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdmrafi/vartalap/internal/auth"
	"github.com/mdmrafi/vartalap/internal/chat"
	"github.com/mdmrafi/vartalap/internal/delivery"
	"github.com/mdmrafi/vartalap/internal/model"
	"github.com/mdmrafi/vartalap/internal/presence"
	"github.com/mdmrafi/vartalap/internal/storage"
	"github.com/mdmrafi/vartalap/internal/storage/sqlite"
)

type testEnv struct {
	router *gin.Engine
	store  *storage.Store
	hub    *chat.Hub
	svc    *delivery.Service
	actor  string
}

// newTestEnv wires the full stack against in-memory sqlite, with a
// middleware standing in for the JWT layer.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := storage.New(db)
	require.NoError(t, st.Migrate())

	svc := delivery.New(st)
	hub := chat.NewHub(st, svc, presence.NewRegistry(), 3*time.Second)

	env := &testEnv{store: st, hub: hub, svc: svc}

	r := gin.New()
	rg := r.Group("/api")
	rg.Use(func(c *gin.Context) {
		c.Set(string(auth.CtxUserID), env.actor)
		c.Next()
	})
	Register(rg, hub, svc, 30)
	env.router = r
	return env
}

func (e *testEnv) newUser(t *testing.T, username string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, e.store.CreateUser(context.Background(), id, username, "", "x", time.Now().UTC()))
	return id
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	env.actor = alice

	t.Run("success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/messages", gin.H{"to_user_id": bob, "text": "hi"})
		require.Equal(t, http.StatusCreated, w.Code)

		body := decode(t, w)
		assert.JSONEq(t, "true", string(body["success"]))
		var msg model.Message
		require.NoError(t, json.Unmarshal(body["data"], &msg))
		assert.Equal(t, model.StatusSent, msg.Status)
		assert.Equal(t, alice, msg.FromUserID)
	})

	t.Run("missing recipient field", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/messages", gin.H{"text": "hi"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/messages", gin.H{"to_user_id": "ghost", "text": "hi"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty content", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/messages", gin.H{"to_user_id": bob})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConversationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	for _, text := range []string{"one", "two", "three"} {
		_, err := env.hub.SendMessage(ctx, alice, bob, text, "", model.KindText)
		require.NoError(t, err)
		// Creation timestamps carry the ordering; keep them distinct.
		time.Sleep(2 * time.Millisecond)
	}

	env.actor = bob

	t.Run("page is oldest first", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/messages/conversation/"+alice+"?page=1&limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		var msgs []model.Message
		require.NoError(t, json.Unmarshal(body["messages"], &msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, "two", msgs[0].Text)
		assert.Equal(t, "three", msgs[1].Text)
		assert.JSONEq(t, "true", string(body["hasMore"]))
	})

	t.Run("unread count", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/messages/unread-count", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.JSONEq(t, "3", string(body["count"]))
	})

	t.Run("list conversations", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/messages/conversations", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		var convs []model.ConversationSummary
		require.NoError(t, json.Unmarshal(body["conversations"], &convs))
		require.Len(t, convs, 1)
		assert.Equal(t, alice, convs[0].PartnerID)
		assert.Equal(t, 3, convs[0].UnreadCount)
	})

	t.Run("mark conversation read", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/messages/conversation/"+alice+"/read", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.JSONEq(t, "3", string(body["count"]))

		w = env.do(t, http.MethodGet, "/api/messages/unread-count", nil)
		body = decode(t, w)
		assert.JSONEq(t, "0", string(body["count"]))
	})
}

func TestEditAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	msg, err := env.hub.SendMessage(ctx, alice, bob, "hi", "", model.KindText)
	require.NoError(t, err)

	env.actor = bob
	w := env.do(t, http.MethodPut, "/api/messages/"+msg.ID, gin.H{"text": "hello"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.actor = alice
	w = env.do(t, http.MethodPut, "/api/messages/"+msg.ID, gin.H{"text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	var edited model.Message
	require.NoError(t, json.Unmarshal(body["data"], &edited))
	assert.Equal(t, "hello", edited.Text)
	assert.Equal(t, "hi", edited.OriginalText)
}

func TestDeleteEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")
	carol := env.newUser(t, "carol")

	msg, err := env.hub.SendMessage(ctx, alice, bob, "hi", "", model.KindText)
	require.NoError(t, err)

	env.actor = carol
	w := env.do(t, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	env.actor = bob
	w = env.do(t, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Bob no longer sees it; Alice still does.
	page, _, err := env.svc.GetConversation(ctx, bob, alice, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	page, _, err = env.svc.GetConversation(ctx, alice, bob, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	env.actor = alice
	w = env.do(t, http.MethodDelete, "/api/messages/conversation/"+bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.JSONEq(t, "1", string(body["count"]))

	got, err := env.store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestUnknownMessageIs404(t *testing.T) {
	env := newTestEnv(t)
	env.actor = env.newUser(t, "alice")

	w := env.do(t, http.MethodPut, "/api/messages/"+uuid.NewString()+"/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
