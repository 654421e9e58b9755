package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/messenger-cosmos-public/bridge/internal/config"
	"github.com/messenger-cosmos-public/bridge/internal/http/middleware"
	"github.com/messenger-cosmos-public/bridge/internal/metrics"
	"github.com/messenger-cosmos-public/bridge/internal/presence"
	"github.com/messenger-cosmos-public/bridge/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopTransport struct{}

func (nopTransport) Send(string, presence.Event) bool        { return true }
func (nopTransport) Broadcast(presence.Event, string)         {}
func (nopTransport) SendGroup(string, presence.Event, string) {}
func (nopTransport) AddToGroup(string, string)                {}
func (nopTransport) RemoveFromGroup(string, string)           {}

func newTestEngine(t *testing.T) (*gin.Engine, *presence.Router) {
	t.Helper()
	router := presence.NewRouter(nopTransport{}, presence.WithInvariantChecks(true))
	m := metrics.New(router.Clients().Len, router.Groups().Len)
	cfg := config.Default()
	cfg.MaintenanceFlag = ""
	engine := NewRouter(RouterDeps{
		Handler: NewHandler(router, validation.New()),
		Hub: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		Metrics: m.Handler(),
		Origins: middleware.NewOriginPolicy(cfg.AllowedOriginHosts),
		Config:  cfg,
		Logger:  zap.NewNop(),
	})
	return engine, router
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestHealthAndHub(t *testing.T) {
	engine, _ := newTestEngine(t)

	var health map[string]string
	if code := get(t, engine, "/health", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health: %d %v", code, health)
	}
	if code := get(t, engine, "/bridgehub", nil); code != http.StatusTeapot {
		t.Errorf("hub path should reach the hub handler, got %d", code)
	}
	if code := get(t, engine, "/metrics", nil); code != http.StatusOK {
		t.Errorf("metrics: %d", code)
	}
}

func TestClientViews(t *testing.T) {
	engine, router := newTestEngine(t)
	id := uuid.NewString()
	router.Connect(id)
	router.Register(id, "alice", map[string]string{"role": "host"})

	var list struct {
		Clients []presence.ClientSession `json:"clients"`
	}
	if code := get(t, engine, "/api/clients", &list); code != http.StatusOK {
		t.Fatalf("list clients: %d", code)
	}
	if len(list.Clients) != 1 || list.Clients[0].Name != "alice" {
		t.Errorf("unexpected clients %+v", list.Clients)
	}

	var s presence.ClientSession
	if code := get(t, engine, "/api/clients/"+id, &s); code != http.StatusOK || s.Metadata["role"] != "host" {
		t.Errorf("get client: %d %+v", code, s)
	}
	if code := get(t, engine, "/api/clients/"+uuid.NewString(), nil); code != http.StatusNotFound {
		t.Errorf("unknown client should be 404, got %d", code)
	}
	if code := get(t, engine, "/api/clients/not-a-uuid", nil); code != http.StatusBadRequest {
		t.Errorf("malformed id should be 400, got %d", code)
	}
}

func TestGroupViews(t *testing.T) {
	engine, router := newTestEngine(t)
	a, b := uuid.NewString(), uuid.NewString()
	for _, id := range []string{a, b} {
		router.Connect(id)
	}
	router.Join(a, "room1", map[string]string{"topic": "go"})
	router.Join(b, "room1", nil)

	var list struct {
		Groups []presence.GroupChannel `json:"groups"`
	}
	if code := get(t, engine, "/api/groups", &list); code != http.StatusOK || len(list.Groups) != 1 {
		t.Fatalf("list groups: %d %+v", code, list.Groups)
	}

	var ch presence.GroupChannel
	if code := get(t, engine, "/api/groups/room1", &ch); code != http.StatusOK {
		t.Fatalf("get group: %d", code)
	}
	if ch.Metadata["topic"] != "go" || len(ch.Members) != 2 {
		t.Errorf("unexpected group %+v", ch)
	}

	var members struct {
		GroupID string                   `json:"groupId"`
		Members []presence.ClientSession `json:"members"`
	}
	if code := get(t, engine, "/api/groups/room1/members", &members); code != http.StatusOK || len(members.Members) != 2 {
		t.Errorf("members: %d %+v", code, members)
	}

	router.Leave(a, "room1")
	router.Leave(b, "room1")
	if code := get(t, engine, "/api/groups/room1", nil); code != http.StatusNotFound {
		t.Errorf("empty group should be gone, got %d", code)
	}
	if code := get(t, engine, "/api/groups/room1/members", nil); code != http.StatusNotFound {
		t.Errorf("members of a removed group should be 404, got %d", code)
	}
}
