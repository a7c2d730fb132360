package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/buildinfo"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/comparison"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/engine"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/errors"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/feature"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/session"
	"github.com/gpmc-lab-ufrgs/atlas/pkg/sink"
)

// maxEventBody bounds the size of a posted event.
const maxEventBody = 16 << 10

type viewResponse struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Snapshot  engine.Snapshot `json:"snapshot"`
	Map       sink.View       `json:"map"`
	Changes   int             `json:"changes"`
}

type eventRequest struct {
	// Kind is either a raw map interaction (hover, click, leave) or an
	// engine event kind (select_district, toggle_comparison, ...).
	Kind     string           `json:"kind"`
	Level    feature.Level    `json:"level,omitempty"`
	Feature  string           `json:"feature,omitempty"`
	Position *engine.Position `json:"position,omitempty"`
}

type eventResponse struct {
	Result engine.Result `json:"result"`
	View   viewResponse  `json:"view"`
}

type comparisonResponse struct {
	Route    string             `json:"route"`
	Members  []*feature.Feature `json:"members"`
	Capacity int                `json:"capacity"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	states, districts := s.catalogue.Len()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"views":     s.views.Len(),
		"states":    states,
		"districts": districts,
		"build":     buildinfo.Get(),
	})
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	views := s.views.List()
	out := make([]viewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, describeView(v))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateView(w http.ResponseWriter, r *http.Request) {
	v, err := s.views.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/views/"+v.ID)
	s.writeJSON(w, http.StatusCreated, describeView(v))
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, describeView(v))
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Delete(r.Context(), chi.URLParam(r, "viewID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}

	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed event"))
		return
	}

	res, err := s.dispatch(r, v.Engine, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !res.OK() && !errors.IsRecoverable(res.Status) {
		s.writeError(w, errors.New(res.Status, "%s", res.Message))
		return
	}
	s.writeJSON(w, http.StatusOK, eventResponse{Result: res, View: describeView(v)})
}

// dispatch resolves the feature named by req and hands the event to eng.
func (s *Server) dispatch(r *http.Request, eng *engine.Engine, req eventRequest) (engine.Result, error) {
	ctx := r.Context()

	switch kind := engine.MapEventKind(req.Kind); kind {
	case engine.MapHover, engine.MapClick, engine.MapLeave:
		level, err := feature.ParseLevel(string(req.Level))
		if err != nil && !(kind == engine.MapClick && req.Feature == "") {
			return engine.Result{}, err
		}
		f, err := s.lookup(level, req.Feature)
		if err != nil {
			return engine.Result{}, err
		}
		return eng.HandleMapEvent(ctx, engine.MapEvent{Kind: kind, Level: level, Feature: f, Position: req.Position}), nil
	}

	kind := engine.EventKind(req.Kind)
	level, ok := eventLevel(kind)
	if !ok {
		return engine.Result{}, errors.New(errors.ErrCodeInvalidInput, "unknown event kind %q", req.Kind)
	}
	var f *feature.Feature
	if level != "" {
		var err error
		if f, err = s.lookup(level, req.Feature); err != nil {
			return engine.Result{}, err
		}
	}
	return eng.Dispatch(ctx, engine.Event{Kind: kind, Feature: f, Position: req.Position}), nil
}

// lookup resolves id in the catalogue. An empty id is the absent feature.
func (s *Server) lookup(level feature.Level, id string) (*feature.Feature, error) {
	if id == "" {
		return nil, nil
	}
	if err := errors.ValidateFeatureID(id); err != nil {
		return nil, err
	}
	return s.catalogue.Lookup(level, id)
}

// eventLevel returns the level of the feature an engine event carries, ""
// for events without one.
func eventLevel(kind engine.EventKind) (feature.Level, bool) {
	switch kind {
	case engine.EventHoverState, engine.EventSelectState:
		return feature.LevelState, true
	case engine.EventHoverDistrict, engine.EventSelectDistrict,
		engine.EventToggleComparison, engine.EventAddComparison, engine.EventRemoveComparison:
		return feature.LevelDistrict, true
	case engine.EventResetAll:
		return "", true
	}
	return "", false
}

func (s *Server) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	snap := v.Engine.Snapshot()
	s.writeJSON(w, http.StatusOK, comparisonResponse{
		Route:    snap.Route,
		Members:  nonNil(snap.Comparison),
		Capacity: snap.Capacity,
	})
}

func (s *Server) handleAddComparison(w http.ResponseWriter, r *http.Request) {
	s.changeComparison(w, r, engine.EventAddComparison)
}

func (s *Server) handleRemoveComparison(w http.ResponseWriter, r *http.Request) {
	s.changeComparison(w, r, engine.EventRemoveComparison)
}

func (s *Server) changeComparison(w http.ResponseWriter, r *http.Request, kind engine.EventKind) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "featureID")
	if err := errors.ValidateFeatureID(id); err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.catalogue.Lookup(feature.LevelDistrict, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := v.Engine.Dispatch(r.Context(), engine.Event{Kind: kind, Feature: f})
	if !res.OK() && !errors.IsRecoverable(res.Status) {
		s.writeError(w, errors.New(res.Status, "%s", res.Message))
		return
	}
	status := http.StatusOK
	if res.Status == errors.ErrCodeCapacityExceeded || res.Status == errors.ErrCodeAlreadyPresent {
		status = http.StatusConflict
	}
	s.writeJSON(w, status, eventResponse{Result: res, View: describeView(v)})
}

// handleComparisonRoute resolves a shareable comparison route to its
// districts, in route order.
func (s *Server) handleComparisonRoute(w http.ResponseWriter, r *http.Request) {
	route := chi.URLParam(r, "route")
	ids, err := comparison.ParseRoute(route, s.capacity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	members := make([]*feature.Feature, 0, len(ids))
	for _, id := range ids {
		f, err := s.catalogue.Lookup(feature.LevelDistrict, id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		members = append(members, f)
	}
	s.writeJSON(w, http.StatusOK, comparisonResponse{
		Route:    comparison.Route(ids),
		Members:  members,
		Capacity: s.capacity,
	})
}

// handleDrainDirectives returns the directives issued since the previous
// call, for map clients that poll instead of reading event responses.
func (s *Server) handleDrainDirectives(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	pending := []engine.Directive{}
	if v.Recorder != nil {
		pending = append(pending, v.Recorder.Drain()...)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"directives": pending})
}

// view loads the view named in the URL, writing the error response when it
// is unknown or expired.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (session.View, bool) {
	v, err := s.views.Get(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		s.writeError(w, err)
		return session.View{}, false
	}
	return v, true
}

func describeView(v session.View) viewResponse {
	snap := v.Engine.Snapshot()
	snap.Comparison = nonNil(snap.Comparison)
	resp := viewResponse{
		ID:        v.ID,
		CreatedAt: v.CreatedAt,
		ExpiresAt: v.ExpiresAt,
		Snapshot:  snap,
	}
	if v.Recorder != nil {
		resp.Map = v.Recorder.View()
		resp.Changes = v.Recorder.Changes()
	}
	return resp
}

func nonNil(fs []*feature.Feature) []*feature.Feature {
	if fs == nil {
		return []*feature.Feature{}
	}
	return fs
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

// httpStatus maps an error code onto a response status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeFeatureNotFound, errors.ErrCodeViewNotFound:
		return http.StatusNotFound
	case errors.ErrCodeViewExpired:
		return http.StatusGone
	case errors.ErrCodeCapacityExceeded, errors.ErrCodeAlreadyPresent:
		return http.StatusConflict
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeNetwork:
		return http.StatusBadGateway
	}
	if strings.HasPrefix(string(code), "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
