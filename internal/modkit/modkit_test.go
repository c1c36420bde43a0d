package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "ejournal/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type pingPorts interface{ Ping() string }

type pingMod struct{}

func (pingMod) MountRoutes(r phttp.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
}
func (pingMod) Ports() any   { return pingMod{} }
func (pingMod) Name() string { return "ping" }
func (pingMod) Ping() string { return "pong" }

func TestMountAll_AndPortsAs(t *testing.T) {
	t.Parallel()

	mux := chi.NewRouter()
	MountAll(phttp.AdaptChi(mux), pingMod{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Body.String() != "pong" {
		t.Fatalf("route not mounted, body=%q", rec.Body.String())
	}

	p, ok := PortsAs[pingPorts](pingMod{})
	if !ok || p.Ping() != "pong" {
		t.Fatalf("PortsAs failed")
	}
	if _, ok := PortsAs[interface{ Missing() }](pingMod{}); ok {
		t.Fatalf("PortsAs should miss for unrelated interface")
	}
}
