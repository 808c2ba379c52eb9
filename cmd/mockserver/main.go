// File: cmd/mockserver/main.go
//
// mockserver is a local stand-in for the remote enhancement service. Jobs
// advance queued -> processing -> succeeded (or failed for prompts
// containing "fail") on a timer, so the client can be exercised end to end
// without the real backend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"image-enhance-client/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type store struct {
	mu     sync.Mutex
	jobs   map[string]*model.Job
	assets map[string]*model.Asset
	shoots map[string][]string // shoot id -> asset ids
}

func newStore() *store {
	return &store{
		jobs:   make(map[string]*model.Job),
		assets: make(map[string]*model.Asset),
		shoots: make(map[string][]string),
	}
}

// advance moves every non-terminal job one step forward.
func (s *store) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, j := range s.jobs {
		switch j.Status {
		case model.JobStatusQueued:
			j.Status = model.JobStatusProcessing
			j.StartedAt = &now
		case model.JobStatusProcessing:
			if j.ErrorMessage == "pending-failure" {
				j.Status = model.JobStatusFailed
				j.ErrorMessage = "enhancement worker rejected the prompt"
			} else {
				j.Status = model.JobStatusSucceeded
				j.ResultRef = "result/" + j.ID
			}
			j.CompletedAt = &now
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, map[string]string{"detail": detail, "code": code})
}

func main() {
	port := flag.Int("port", 8900, "listen port")
	step := flag.Duration("step", 2*time.Second, "job state advance interval")
	flag.Parse()

	st := newStore()
	go func() {
		ticker := time.NewTicker(*step)
		defer ticker.Stop()
		for range ticker.C {
			st.advance()
		}
	}()

	r := chi.NewRouter()

	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		st.mu.Lock()
		job, ok := st.jobs[chi.URLParam(req, "id")]
		var cp model.Job
		if ok {
			cp = *job
		}
		st.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "job not found", "job_not_found")
			return
		}
		writeJSON(w, http.StatusOK, cp)
	})

	r.Post("/jobs", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "expected multipart form", "bad_request")
			return
		}
		assetID := req.FormValue("asset_id")
		prompt := req.FormValue("prompt")

		st.mu.Lock()
		asset, ok := st.assets[assetID]
		if !ok {
			st.mu.Unlock()
			writeError(w, http.StatusUnprocessableEntity, "unknown asset", "asset_not_found")
			return
		}
		job := &model.Job{
			ID:          uuid.NewString(),
			ShootID:     asset.ShootID,
			Status:      model.JobStatusQueued,
			SubmittedAt: time.Now().UTC(),
		}
		if prompt == "fail" {
			// marker consumed by advance()
			job.ErrorMessage = "pending-failure"
		}
		st.jobs[job.ID] = job
		asset.Jobs = append(asset.Jobs, *job)
		cp := *job
		st.mu.Unlock()
		writeJSON(w, http.StatusCreated, cp)
	})

	jobAction := func(terminalOnly bool, next model.JobStatus) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			st.mu.Lock()
			job, ok := st.jobs[chi.URLParam(req, "id")]
			if !ok {
				st.mu.Unlock()
				writeError(w, http.StatusNotFound, "job not found", "job_not_found")
				return
			}
			if terminalOnly && !job.Status.Terminal() {
				st.mu.Unlock()
				writeError(w, http.StatusConflict, "job is still running", "job_active")
				return
			}
			job.Status = next
			job.ErrorMessage = ""
			job.CompletedAt = nil
			job.StartedAt = nil
			cp := *job
			st.mu.Unlock()
			writeJSON(w, http.StatusOK, cp)
		}
	}
	r.Post("/jobs/{id}/retry", jobAction(true, model.JobStatusQueued))
	r.Post("/jobs/{id}/cancel", jobAction(false, model.JobStatusFailed))

	r.Get("/shoots/{id}/assets", func(w http.ResponseWriter, req *http.Request) {
		shootID := chi.URLParam(req, "id")
		st.mu.Lock()
		resp := model.ShootAssets{
			Shoot: model.Shoot{ID: shootID, Name: "mock shoot"},
		}
		for _, aid := range st.shoots[shootID] {
			a := st.assets[aid]
			cp := *a
			cp.Jobs = nil
			for _, j := range a.Jobs {
				if live, ok := st.jobs[j.ID]; ok {
					cp.Jobs = append(cp.Jobs, *live)
				}
			}
			resp.Assets = append(resp.Assets, cp)
		}
		st.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
	})

	createAsset := func(shootID, filename, contentType string, size int64) model.Asset {
		asset := &model.Asset{
			ID:          uuid.NewString(),
			ShootID:     shootID,
			Filename:    filename,
			ContentType: contentType,
			Size:        size,
			CreatedAt:   time.Now().UTC(),
		}
		st.mu.Lock()
		st.assets[asset.ID] = asset
		st.shoots[shootID] = append(st.shoots[shootID], asset.ID)
		cp := *asset
		st.mu.Unlock()
		return cp
	}

	r.Post("/uploads", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "expected multipart form", "bad_request")
			return
		}
		shootID := req.FormValue("shoot_id")
		file, header, err := req.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file part", "bad_request")
			return
		}
		defer file.Close()
		asset := createAsset(shootID, header.Filename, header.Header.Get("Content-Type"), header.Size)
		writeJSON(w, http.StatusCreated, asset)
	})

	r.Post("/uploads/presign", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Filename    string `json:"filename"`
			ContentType string `json:"content_type"`
			ShootID     string `json:"shoot_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body", "bad_request")
			return
		}
		asset := createAsset(body.ShootID, body.Filename, body.ContentType, 0)
		writeJSON(w, http.StatusOK, model.PresignTarget{
			UploadURL: fmt.Sprintf("http://localhost:%d/direct/%s", *port, asset.ID),
			Fields: map[string]string{
				"key":    "uploads/" + asset.ID,
				"policy": uuid.NewString(),
			},
			AssetID: asset.ID,
		})
	})

	r.Post("/direct/{id}", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "expected multipart form", "bad_request")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock enhancement service listening on %s (advance every %s)", addr, *step)
	log.Fatal(http.ListenAndServe(addr, r))
}
