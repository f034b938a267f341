package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/types"
)

const (
	defaultTopN     = 10
	maxListLimit    = 1000
	defaultRunLimit = 20
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// queryInt parses a non-negative integer query parameter, def when absent
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	if v > maxListLimit {
		v = maxListLimit
	}
	return v, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Product  string `json:"product,omitempty"`
	Clusters int    `json:"clusters"`
	Failed   bool   `json:"failed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	resp := healthResponse{Status: "ok", Product: s.opts.Product, Clusters: stats.Clusters, Failed: stats.Failed}
	if stats.Failed {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/clusters?limit=&feature=
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clusters := export.Rank(s.engine.SnapshotClusters())
	if f := r.URL.Query().Get("feature"); f != "" {
		feature := types.ParseFeature(f)
		kept := clusters[:0]
		for _, c := range clusters {
			if c.Feature == feature {
				kept = append(kept, c)
			}
		}
		clusters = kept
	}
	if limit > 0 && limit < len(clusters) {
		clusters = clusters[:limit]
	}
	if clusters == nil {
		clusters = []types.ComplaintCluster{}
	}
	writeJSON(w, http.StatusOK, clusters)
}

// GET /api/clusters/{id}
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := s.engine.Cluster(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("cluster %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type featureShare struct {
	Feature types.Feature `json:"feature"`
	Count   int           `json:"count"`
	Percent float64       `json:"percent"`
}

type sourceShare struct {
	Source  types.Source `json:"source"`
	Count   int          `json:"count"`
	Percent float64      `json:"percent"`
}

type matrixResponse struct {
	Total         int                                          `json:"total"`
	Cells         map[types.Feature]map[types.FeedbackType]int `json:"cells"`
	FeedbackTypes []types.FeedbackType                         `json:"feedback_types"`
	Features      []featureShare                               `json:"features"`
	Sources       []sourceShare                                `json:"sources"`
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// GET /api/matrix
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	m := s.engine.SnapshotMatrix()
	total := m.Total()

	resp := matrixResponse{
		Total:         total,
		Cells:         m.Cells,
		FeedbackTypes: m.FeedbackTypes(),
		Features:      []featureShare{},
		Sources:       []sourceShare{},
	}
	for _, f := range m.Features() {
		n := m.FeatureTotal(f)
		resp.Features = append(resp.Features, featureShare{Feature: f, Count: n, Percent: percent(n, total)})
	}
	for _, src := range m.SourceNames() {
		n := m.Sources[src]
		resp.Sources = append(resp.Sources, sourceShare{Source: src, Count: n, Percent: percent(n, total)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/top?n=
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", defaultTopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows := export.Top(export.ClusterRows(s.engine.SnapshotClusters()), n)
	writeJSON(w, http.StatusOK, rows)
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// GET /api/export.csv?granularity=cluster|item&n=
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clusters := s.engine.SnapshotClusters()
	var rows []export.Row
	switch g := strings.ToLower(r.URL.Query().Get("granularity")); g {
	case "", "cluster":
		rows = export.Top(export.ClusterRows(clusters), n)
	case "item":
		rows = export.Top(export.ItemRows(clusters), n)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown granularity %q", g))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="complaints.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		s.logger.Error("failed to write CSV export", "err", err)
	}
}

// GET /api/matrix.csv
func (s *Server) handleMatrixCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="matrix.csv"`)
	if err := export.WriteMatrixCSV(w, s.engine.SnapshotMatrix()); err != nil {
		s.logger.Error("failed to write matrix CSV", "err", err)
	}
}

type matchResponse struct {
	Text    string                       `json:"text"`
	Matches []deduplication.FeatureMatch `json:"matches"`
}

// GET /api/match?q=
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Embedder == nil {
		writeError(w, http.StatusNotFound, "matching is not enabled")
		return
	}
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	vec, err := s.opts.Embedder.Embed(r.Context(), text)
	if err != nil {
		s.logger.Warn("embedding failed", "err", err)
		writeError(w, http.StatusBadGateway, "embedding failed")
		return
	}
	matches := s.engine.FindBestMatches(vec)
	if matches == nil {
		matches = []deduplication.FeatureMatch{}
	}
	writeJSON(w, http.StatusOK, matchResponse{Text: text, Matches: matches})
}

// GET /api/runs?limit=
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "run history is not available")
		return
	}
	limit, err := queryInt(r, "limit", defaultRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.opts.History.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GET /api/runs/{id}/events?type=&severity=&limit=
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "run history is not available")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := events.EventFilter{
		RunID:    chi.URLParam(r, "id"),
		Type:     events.EventType(r.URL.Query().Get("type")),
		Severity: events.EventSeverity(r.URL.Query().Get("severity")),
		Limit:    limit,
	}
	evs, err := s.opts.History.GetEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to get run events", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get run events")
		return
	}
	if evs == nil {
		evs = []*events.RunEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}
