package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/ingest"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

// RunView is the JSON form of an invocation summary.
type RunView struct {
	InvocationID string         `json:"invocation_id"`
	Started      time.Time      `json:"started"`
	DurationMS   int64          `json:"duration_ms"`
	Counts       map[string]int `json:"counts"`
	Files        []FileView     `json:"files"`
	Error        string         `json:"error,omitempty"`
}

// FileView is the JSON form of one file result.
type FileView struct {
	Origin      string `json:"origin"`
	Key         string `json:"key"`
	Disposition string `json:"disposition"`
	Error       string `json:"error,omitempty"`
	Code        string `json:"code,omitempty"`
}

var dispositions = []core.Disposition{
	core.Archived, core.Rejected, core.Quarantined, core.LeftInPlace, core.Skipped,
}

func newRunView(res ingest.RunResult) RunView {
	v := RunView{
		InvocationID: res.Summary.InvocationID,
		Started:      res.Summary.Started,
		DurationMS:   res.Summary.Duration.Milliseconds(),
		Counts:       make(map[string]int, len(dispositions)),
		Files:        make([]FileView, 0, len(res.Summary.Files)),
	}
	for _, d := range dispositions {
		v.Counts[string(d)] = res.Summary.Count(d)
	}
	for _, f := range res.Summary.Files {
		fv := FileView{Origin: string(f.Origin), Key: f.Key, Disposition: string(f.Disposition)}
		if f.Err != nil {
			fv.Error = f.Err.Error()
			fv.Code = core.MapError(f.Err).Code
		}
		v.Files = append(v.Files, fv)
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartRun starts an invocation in the background.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Start(s.runCtx); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunInProgress) {
			status = http.StatusConflict
		}
		s.respondError(w, r, err, status)
		return
	}
	logging.FromContext(r.Context()).Info("run triggered over http")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	running, since := s.runner.Limiter().Running()
	body := map[string]any{"running": running}
	if running {
		body["since"] = since
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	last, ok := s.runner.Last()
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "no run has finished yet",
			Message: "no run has finished yet",
			Code:    "RUN404",
		})
		return
	}
	writeJSON(w, http.StatusOK, newRunView(last))
}
