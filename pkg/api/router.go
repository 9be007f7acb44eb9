package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"appgrowth-segmenter/pkg/appgrowth"
	"appgrowth-segmenter/pkg/workspace"
)

// Server exposes one AppGrowth session over HTTP.
type Server struct {
	ws      *workspace.Workspace
	session *appgrowth.Session
	creator *appgrowth.SegmentCreator
}

func NewServer(ws *workspace.Workspace, s *appgrowth.Session) *Server {
	return &Server{
		ws:      ws,
		session: s,
		creator: appgrowth.NewSegmentCreator(s, ws.Log),
	}
}

func NewRouter(srv *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", srv.IndexHandler).Methods("GET")
	r.HandleFunc("/health", srv.HealthHandler).Methods("GET")
	r.HandleFunc("/segments", srv.CreateSegmentHandler).Methods("POST")
	r.HandleFunc("/segments/name", NameHandler).Methods("GET")
	return r
}

type CreateSegmentRequest struct {
	AppID   string  `json:"app_id"`
	Country string  `json:"country"`
	Type    string  `json:"segment_type"`
	Value   float64 `json:"value"`
	Title   string  `json:"title,omitempty"`
}

type CreateSegmentResponse struct {
	RunID string `json:"run_id"`
	appgrowth.CreateResult
}

func (srv *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "AppGrowth segmenter is running",
		"timestamp": time.Now().Unix(),
	})
}

// HealthHandler reports the last known login state without contacting
// AppGrowth.
func (srv *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	auth := "disconnected"
	if srv.session.Authenticated() {
		auth = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"appgrowth_auth": auth,
		"timestamp":      time.Now().Unix(),
	})
}

// CreateSegmentHandler derives the bloom name, logs in if needed and creates
// one segment. 201 means created; 502 carries the failure diagnostic.
func (srv *Server) CreateSegmentHandler(w http.ResponseWriter, r *http.Request) {
	var body CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	t, err := appgrowth.ParseSegmentType(body.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	country := strings.ToUpper(strings.TrimSpace(body.Country))
	title := body.Title
	if title == "" {
		title = body.AppID
	}

	req := appgrowth.SegmentRequest{
		Name:    appgrowth.SegmentName(body.AppID, country, t, body.Value),
		Title:   title,
		AppID:   body.AppID,
		Country: country,
		Type:    t,
		Value:   body.Value,
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if res := srv.ws.EnsureLogin(r.Context(), srv.session); !res.Authenticated {
		http.Error(w, "AppGrowth authorization failed: "+res.Diagnostic, http.StatusServiceUnavailable)
		return
	}

	runID := uuid.New().String()
	res := srv.creator.CreateSegment(r.Context(), req)
	srv.ws.RecordResult(runID, res)

	status := http.StatusCreated
	if !res.Created {
		status = http.StatusBadGateway
	}

	writeJSON(w, status, CreateSegmentResponse{RunID: runID, CreateResult: res})
}

// NameHandler previews the segment name for the query parameters app,
// country, type and value.
func NameHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spec, err := appgrowth.ParseSegmentSpec(q.Get("type") + "_" + q.Get("value"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name": appgrowth.SegmentName(q.Get("app"), q.Get("country"), spec.Type, spec.Value),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
