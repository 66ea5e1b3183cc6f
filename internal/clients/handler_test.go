package clients_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"v1tr0-backend/internal/clients"
	"v1tr0-backend/internal/filestore"
	"v1tr0-backend/internal/meetings"
	"v1tr0-backend/internal/validation"
)

type clientsEnv struct {
	repo     *clients.FileRepository
	meetings *meetings.FileRepository
	handler  *clients.Handler
}

func newClientsEnv(t *testing.T) *clientsEnv {
	t.Helper()
	dir := t.TempDir()
	clientsDoc, err := filestore.Open[clients.Client](filepath.Join(dir, "clients.json"))
	if err != nil {
		t.Fatalf("open clients: %v", err)
	}
	meetingsDoc, err := filestore.Open[meetings.Booking](filepath.Join(dir, "meetings.json"))
	if err != nil {
		t.Fatalf("open meetings: %v", err)
	}
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	repo := clients.NewFileRepository(clientsDoc)
	bookings := meetings.NewFileRepository(meetingsDoc)
	service := clients.NewService(repo, bookings, loc)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &clientsEnv{
		repo:     repo,
		meetings: bookings,
		handler:  clients.NewHandler(service, validation.New(), log),
	}
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(method, target, reader))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestSaveCreatesThenRefreshes(t *testing.T) {
	env := newClientsEnv(t)

	rr := serve(env.handler.Save, http.MethodPost, "/api/clients", `{"name":"Ana","email":" Ana@Example.com "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)["client"].(map[string]interface{})
	if created["email"] != "ana@example.com" {
		t.Fatalf("expected normalized email, got %v", created["email"])
	}

	rr = serve(env.handler.Save, http.MethodPost, "/api/clients", `{"name":"Ana Perez","email":"ana@example.com","company":"Acme"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	refreshed := body["client"].(map[string]interface{})
	if refreshed["id"] != created["id"] || refreshed["name"] != "Ana Perez" || body["created"] != false {
		t.Fatalf("expected same record refreshed, got %v", body)
	}

	rr = serve(env.handler.Save, http.MethodPost, "/api/clients", `{"name":"","email":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid: expected 400, got %d", rr.Code)
	}
	details := decode(t, rr)["details"].(map[string]interface{})
	if details["email"] == nil || details["name"] == nil {
		t.Fatalf("expected field details, got %v", details)
	}
}

func TestGetAndList(t *testing.T) {
	env := newClientsEnv(t)
	for _, body := range []string{
		`{"name":"Ana","email":"ana@example.com"}`,
		`{"name":"Luis","email":"luis@example.com"}`,
	} {
		if rr := serve(env.handler.Save, http.MethodPost, "/api/clients", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rr.Code)
		}
	}

	rr := serve(env.handler.Get, http.MethodGet, "/api/clients?email=LUIS@example.com", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	rr = serve(env.handler.Get, http.MethodGet, "/api/clients?email=ghost@example.com", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown: expected 404, got %d", rr.Code)
	}

	rr = serve(env.handler.Get, http.MethodGet, "/api/clients?limit=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	body := decode(t, rr)
	if len(body["clients"].([]interface{})) != 1 || body["total"].(float64) != 2 {
		t.Fatalf("expected one of two clients, got %v", body)
	}
	if rr := serve(env.handler.Get, http.MethodGet, "/api/clients?offset=-1", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad offset: expected 400, got %d", rr.Code)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	env := newClientsEnv(t)
	serve(env.handler.Save, http.MethodPost, "/api/clients", `{"name":"Ana","email":"ana@example.com","phone":"+57 300 000 0000"}`)

	rr := serve(env.handler.Update, http.MethodPut, "/api/clients", `{"email":"ana@example.com","company":" Andes Labs "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	c, err := env.repo.GetByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Company != "Andes Labs" || c.Name != "Ana" || c.Phone != "+57 300 000 0000" {
		t.Fatalf("expected only company changed, got %+v", c)
	}

	rr = serve(env.handler.Update, http.MethodPut, "/api/clients", `{"email":"ghost@example.com","name":"Ghost"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown: expected 404, got %d", rr.Code)
	}
	rr = serve(env.handler.Update, http.MethodPut, "/api/clients", `{"email":"ana@example.com","unknown":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rr.Code)
	}
}

func TestDeleteGuardedByScheduledMeetings(t *testing.T) {
	env := newClientsEnv(t)
	ctx := context.Background()
	serve(env.handler.Save, http.MethodPost, "/api/clients", `{"name":"Ana","email":"ana@example.com"}`)
	c, err := env.repo.GetByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	booking := meetings.Booking{ID: "m-1", Date: "2026-02-10", Time: "15:00", Duration: 30, Status: meetings.StatusScheduled, ClientID: c.ID}
	if err := env.meetings.Create(ctx, booking); err != nil {
		t.Fatalf("book: %v", err)
	}

	rr := serve(env.handler.Delete, http.MethodDelete, "/api/clients?email=ana@example.com", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("guarded: expected 409, got %d", rr.Code)
	}

	booking.Status = meetings.StatusCancelled
	if err := env.meetings.Replace(ctx, booking); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	rr = serve(env.handler.Delete, http.MethodDelete, "/api/clients?email=ANA@example.com", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, err := env.repo.GetByEmail(ctx, "ana@example.com"); !errors.Is(err, clients.ErrNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}

	if rr := serve(env.handler.Delete, http.MethodDelete, "/api/clients?email=ana@example.com", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
	if rr := serve(env.handler.Delete, http.MethodDelete, "/api/clients", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing email: expected 400, got %d", rr.Code)
	}
}
