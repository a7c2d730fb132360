package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/geodata"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/session"
)

func testCatalogue() *geodata.Catalogue {
	c := geodata.NewCatalogue()
	c.Add(
		&feature.Feature{ID: "RS", Level: feature.LevelState, Name: "Rio Grande do Sul"},
		&feature.Feature{ID: "SC", Level: feature.LevelState, Name: "Santa Catarina"},
		&feature.Feature{ID: "4314902", Level: feature.LevelDistrict, ParentID: "RS", Name: "Porto Alegre"},
		&feature.Feature{ID: "4314407", Level: feature.LevelDistrict, ParentID: "RS", Name: "Pelotas"},
		&feature.Feature{ID: "4304606", Level: feature.LevelDistrict, ParentID: "RS", Name: "Canoas"},
		&feature.Feature{ID: "4205407", Level: feature.LevelDistrict, ParentID: "SC", Name: "Florianópolis"},
		&feature.Feature{ID: "4209102", Level: feature.LevelDistrict, ParentID: "SC", Name: "Joinville"},
	)
	return c
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *session.Registry) {
	t.Helper()
	cat := testCatalogue()
	logger := log.New(&bytes.Buffer{})
	reg := session.NewRegistry(ViewFactory(cat, logger), time.Minute)
	reg.SetLogger(logger)
	t.Cleanup(func() { reg.Close() })
	return New(reg, cat, append([]Option{WithLogger(logger)}, opts...)...), reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createView(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/views", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /views = %d, want %d", rec.Code, http.StatusCreated)
	}
	v := decode[viewResponse](t, rec)
	if got := rec.Header().Get("Location"); got != "/views/"+v.ID {
		t.Errorf("Location = %q, want /views/%s", got, v.ID)
	}
	return v.ID
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["states"] != float64(2) || body["districts"] != float64(5) {
		t.Errorf("health = %v, want 2 states and 5 districts", body)
	}
}

func TestCreateAndGetView(t *testing.T) {
	srv, reg := newTestServer(t)
	id := createView(t, srv)

	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1", reg.Len())
	}

	rec := do(t, srv, http.MethodGet, "/views/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET view = %d", rec.Code)
	}
	v := decode[viewResponse](t, rec)
	if v.Snapshot.State.Selected != nil || v.Snapshot.District.Selected != nil {
		t.Errorf("new view has a selection: %+v", v.Snapshot)
	}
	if !v.Map.Centered || v.Map.Layers[feature.LevelDistrict] {
		t.Errorf("new view map = %+v, want centered with district layer hidden", v.Map)
	}

	list := decode[[]viewResponse](t, do(t, srv, http.MethodGet, "/views", ""))
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("GET /views = %+v, want [%s]", list, id)
	}
}

func TestViewErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   errors.Code
	}{
		{"malformed id", http.MethodGet, "/views/nope", http.StatusNotFound, errors.ErrCodeViewNotFound},
		{"unknown id", http.MethodGet, "/views/9b2f4c1e-4a4b-4c55-9f3e-1c2d3e4f5a6b", http.StatusNotFound, errors.ErrCodeViewNotFound},
		{"delete unknown", http.MethodDelete, "/views/9b2f4c1e-4a4b-4c55-9f3e-1c2d3e4f5a6b", http.StatusNotFound, errors.ErrCodeViewNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decode[errorResponse](t, rec); got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
}

func TestEventClickDistrictSelectsParent(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createView(t, srv)

	rec := do(t, srv, http.MethodPost, "/views/"+id+"/events",
		`{"kind":"click","level":"district","feature":"4314902","position":{"lng":-51.2,"lat":-30.0}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST event = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[eventResponse](t, rec)

	if !resp.Result.OK() {
		t.Errorf("result status = %s (%s)", resp.Result.Status, resp.Result.Message)
	}
	snap := resp.View.Snapshot
	if snap.District.Selected == nil || snap.District.Selected.ID != "4314902" {
		t.Fatalf("district selected = %v, want 4314902", snap.District.Selected)
	}
	st := snap.State.Selected
	if st == nil || st.ID != "RS" {
		t.Fatalf("state selected = %v, want RS", st)
	}
	if st.Stub || st.Name != "Rio Grande do Sul" {
		t.Errorf("parent = %+v, want the loaded state from the catalogue", st)
	}
	if !resp.View.Map.Layers[feature.LevelDistrict] {
		t.Error("district layer hidden after selecting a district")
	}
	if resp.View.Map.Popup == nil || resp.View.Map.Popup.Feature.ID != "4314902" {
		t.Errorf("popup = %+v, want click popup on 4314902", resp.View.Map.Popup)
	}

	// Clicking empty map resets everything.
	rec = do(t, srv, http.MethodPost, "/views/"+id+"/events", `{"kind":"click"}`)
	resp = decode[eventResponse](t, rec)
	if resp.Result.Event != "reset_all" {
		t.Errorf("empty click event = %s, want reset_all", resp.Result.Event)
	}
	if resp.View.Snapshot.State.Selected != nil || !resp.View.Map.Centered {
		t.Errorf("after reset: snapshot %+v map %+v", resp.View.Snapshot, resp.View.Map)
	}
}

func TestDrainDirectives(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createView(t, srv)

	do(t, srv, http.MethodPost, "/views/"+id+"/events",
		`{"kind":"click","level":"state","feature":"RS"}`)

	type drained struct {
		Directives []map[string]any `json:"directives"`
	}
	first := decode[drained](t, do(t, srv, http.MethodGet, "/views/"+id+"/directives", ""))
	if len(first.Directives) == 0 {
		t.Fatal("first drain returned no directives after a click")
	}
	second := decode[drained](t, do(t, srv, http.MethodGet, "/views/"+id+"/directives", ""))
	if len(second.Directives) != 0 {
		t.Errorf("second drain = %v, want empty", second.Directives)
	}

	v := decode[viewResponse](t, do(t, srv, http.MethodGet, "/views/"+id, ""))
	if v.Changes == 0 {
		t.Error("changes = 0 after a click")
	}
}

func TestEventEngineKinds(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createView(t, srv)
	path := "/views/" + id + "/events"

	rec := do(t, srv, http.MethodPost, path, `{"kind":"select_state","feature":"SC"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select_state = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, srv, http.MethodPost, path, `{"kind":"hover_district","feature":"4209102"}`)
	resp := decode[eventResponse](t, rec)
	if h := resp.View.Snapshot.District.Hovered; h == nil || h.ID != "4209102" {
		t.Errorf("district hovered = %v, want 4209102", h)
	}

	rec = do(t, srv, http.MethodPost, path, `{"kind":"toggle_comparison","feature":"4209102"}`)
	resp = decode[eventResponse](t, rec)
	if resp.View.Snapshot.Route != "comparison/4209102" {
		t.Errorf("route = %q, want comparison/4209102", resp.View.Snapshot.Route)
	}
}

func TestEventRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createView(t, srv)
	path := "/views/" + id + "/events"

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{"malformed json", `{"kind":`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown field", `{"kind":"click","colour":"red"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown kind", `{"kind":"drag"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown level", `{"kind":"hover","level":"county","feature":"RS"}`, http.StatusBadRequest, errors.ErrCodeInvalidLevel},
		{"unknown feature", `{"kind":"select_district","feature":"0000000"}`, http.StatusNotFound, errors.ErrCodeFeatureNotFound},
		{"bad feature id", `{"kind":"select_district","feature":"a+b"}`, http.StatusBadRequest, errors.ErrCodeInvalidFeatureID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if got := decode[errorResponse](t, rec); got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
}

func TestComparisonEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createView(t, srv)
	base := "/views/" + id + "/comparison/"

	for _, fid := range []string{"4314902", "4314407", "4205407", "4209102"} {
		if rec := do(t, srv, http.MethodPost, base+fid, ""); rec.Code != http.StatusOK {
			t.Fatalf("add %s = %d: %s", fid, rec.Code, rec.Body)
		}
	}

	rec := do(t, srv, http.MethodPost, base+"4304606", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("fifth add = %d, want %d", rec.Code, http.StatusConflict)
	}
	if got := decode[eventResponse](t, rec); got.Result.Status != errors.ErrCodeCapacityExceeded {
		t.Errorf("fifth add status = %s, want %s", got.Result.Status, errors.ErrCodeCapacityExceeded)
	}

	rec = do(t, srv, http.MethodPost, base+"4314902", "")
	if got := decode[eventResponse](t, rec); got.Result.Status != errors.ErrCodeAlreadyPresent {
		t.Errorf("duplicate add status = %s, want %s", got.Result.Status, errors.ErrCodeAlreadyPresent)
	}

	if rec := do(t, srv, http.MethodDelete, base+"4314407", ""); rec.Code != http.StatusOK {
		t.Fatalf("remove = %d", rec.Code)
	}

	cmp := decode[comparisonResponse](t, do(t, srv, http.MethodGet, "/views/"+id+"/comparison", ""))
	want := "comparison/4314902+4205407+4209102"
	if cmp.Route != want {
		t.Errorf("route = %q, want %q", cmp.Route, want)
	}
	if len(cmp.Members) != 3 || cmp.Capacity != 4 {
		t.Errorf("comparison = %d members cap %d, want 3 cap 4", len(cmp.Members), cmp.Capacity)
	}

	if rec := do(t, srv, http.MethodPost, base+"RS", ""); rec.Code != http.StatusNotFound {
		t.Errorf("adding a state = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestComparisonRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		ids    []string
	}{
		{"two members", "/comparison/4205407+4314902", http.StatusOK, []string{"4205407", "4314902"}},
		{"unknown member", "/comparison/4205407+1111111", http.StatusNotFound, nil},
		{"duplicate member", "/comparison/4205407+4205407", http.StatusBadRequest, nil},
		{"too many", "/comparison/1+2+3+4+5", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.ids == nil {
				return
			}
			got := feature.IDs(decode[comparisonResponse](t, rec).Members)
			if strings.Join(got, ",") != strings.Join(tt.ids, ",") {
				t.Errorf("members = %v, want %v", got, tt.ids)
			}
		})
	}
}

func TestComparisonCustomCapacity(t *testing.T) {
	cat := testCatalogue()
	logger := log.New(&bytes.Buffer{})
	reg := session.NewRegistry(ViewFactory(cat, logger, engine.WithComparisonCapacity(2)), time.Minute)
	t.Cleanup(func() { reg.Close() })
	srv := New(reg, cat, WithLogger(logger), WithComparisonCapacity(2))
	id := createView(t, srv)

	for i, d := range []string{"4314902", "4205407", "4209102"} {
		rec := do(t, srv, http.MethodPost, "/views/"+id+"/comparison/"+d, "")
		want := http.StatusOK
		if i == 2 {
			want = http.StatusConflict
		}
		if rec.Code != want {
			t.Errorf("add %s = %d, want %d", d, rec.Code, want)
		}
	}
	got := decode[comparisonResponse](t, do(t, srv, http.MethodGet, "/views/"+id+"/comparison", ""))
	if got.Capacity != 2 || len(got.Members) != 2 {
		t.Errorf("comparison = %d members of %d, want 2 of 2", len(got.Members), got.Capacity)
	}

	if rec := do(t, srv, http.MethodGet, "/comparison/4314902+4205407+4209102", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("route past capacity = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeleteViewUnmounts(t *testing.T) {
	srv, reg := newTestServer(t)
	id := createView(t, srv)

	v, err := reg.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	if rec := do(t, srv, http.MethodDelete, "/views/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := do(t, srv, http.MethodGet, "/views/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if res := v.Engine.SelectState(context.Background(), testCatalogue().State("RS"), nil); res.Status != errors.ErrCodeViewExpired {
		t.Errorf("late event status = %s, want %s", res.Status, errors.ErrCodeViewExpired)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	without, _ := newTestServer(t)
	if rec := do(t, without, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without metrics = %d, want 404", rec.Code)
	}

	with, _ := newTestServer(t, WithMetrics(true))
	rec := do(t, with, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go_goroutines")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeViewNotFound, http.StatusNotFound},
		{errors.ErrCodeFeatureNotFound, http.StatusNotFound},
		{errors.ErrCodeViewExpired, http.StatusGone},
		{errors.ErrCodeCapacityExceeded, http.StatusConflict},
		{errors.ErrCodeInvalidRoute, http.StatusBadRequest},
		{errors.ErrCodeInvalidFeatureID, http.StatusBadRequest},
		{errors.ErrCodeTimeout, http.StatusGatewayTimeout},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := httpStatus(tt.code); got != tt.want {
			t.Errorf("httpStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", time.Second) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
