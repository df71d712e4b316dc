package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"whatsapp-bot/internal/auth"
	"whatsapp-bot/internal/automation"
	"whatsapp-bot/internal/testutil"
	"whatsapp-bot/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const jwtSecret = "api-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []string
	fail   bool
	status *whatsapp.Status
}

func (g *fakeGateway) SendText(_ context.Context, _ whatsapp.Instance, phone, text string) (*whatsapp.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, errors.New("gateway unavailable")
	}
	g.sent = append(g.sent, phone+":"+text)
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("op-%d", len(g.sent))}, nil
}

func (g *fakeGateway) InstanceStatus(_ context.Context, inst whatsapp.Instance) (*whatsapp.Status, error) {
	if g.status == nil {
		return nil, &whatsapp.APIError{StatusCode: http.StatusNotFound, Body: "instance not found"}
	}
	return g.status, nil
}

type fakeFeed struct {
	botID string
}

func (f *fakeFeed) ServeWs(w http.ResponseWriter, _ *http.Request, botID string) {
	f.botID = botID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type env struct {
	t       *testing.T
	db      *gorm.DB
	router  *gin.Engine
	gateway *fakeGateway
	feed    *fakeFeed
	owner   testutil.Tenant
	other   testutil.Tenant
	token   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	gw := &fakeGateway{}
	feed := &fakeFeed{}

	r := gin.New()
	RegisterRoutes(r.Group("/api"), Deps{
		DB:        db,
		Verifier:  auth.NewVerifier(jwtSecret),
		Status:    gw,
		Deliverer: automation.NewEngine(db, gw, nil),
		Feed:      feed,
	})

	e := &env{
		t:       t,
		db:      db,
		router:  r,
		gateway: gw,
		feed:    feed,
		owner:   testutil.SeedTenant(t, db, "inst-owner"),
		other:   testutil.SeedTenant(t, db, "inst-other"),
	}
	e.token = testutil.AccessToken(t, jwtSecret, e.owner.Profile.ID)
	return e
}

func (e *env) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	return e.doAs(e.token, method, path, body)
}

func (e *env) doAs(token, method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
