package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mgeezy9/CLIBoard/internal/apierr"
	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
	"github.com/Mgeezy9/CLIBoard/internal/orchestrator"
	"github.com/Mgeezy9/CLIBoard/internal/pathguard"
)

const tailMaxBytes = 64 * 1024

// writeAPIErr maps an apierr.Kind to the HTTP status spec §7 assigns it.
func writeAPIErr(w http.ResponseWriter, err error) {
	kind, ok := apierr.KindOf(err)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusInternalServerError
	switch kind {
	case apierr.KindInvalidEngine, apierr.KindInvalidPath, apierr.KindPathNotAllowed:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindRuntimeError, apierr.KindWriteFailed:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"kind": string(kind), "error": err.Error()})
}

type startRunRequest struct {
	Engine       string            `json:"engine"`
	Workspace    string            `json:"workspace"`
	Creds        string            `json:"creds"`
	ReadOnly     bool              `json:"readOnly"`
	UIDGid       string            `json:"uidgid"`
	ExtraEnv     map[string]string `json:"extraEnv"`
	PreferWarm   *bool             `json:"preferWarm"`
	Argv         []string          `json:"argv"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	engine, ok := dockerdriver.ParseEngine(body.Engine)
	if !ok {
		writeAPIErr(w, apierr.New(apierr.KindInvalidEngine, "unknown engine: "+body.Engine))
		return
	}
	workspace, err := pathguard.Validate(body.Workspace, s.cfg.AllowWorkspaceRoots)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	credsDir, err := pathguard.Validate(body.Creds, s.cfg.AllowCredsRoots)
	if err != nil {
		writeAPIErr(w, err)
		return
	}

	preferWarm := true
	if body.PreferWarm != nil {
		preferWarm = *body.PreferWarm
	}

	fp := dockerdriver.MountFingerprint{
		Engine:        engine,
		WorkspacePath: workspace,
		CredsPath:     credsDir,
		ReadOnlyRoot:  body.ReadOnly,
		UIDGid:        body.UIDGid,
	}

	result, err := s.orch.Start(r.Context(), orchestrator.StartRequest{
		Fingerprint: fp,
		ExtraEnv:    body.ExtraEnv,
		PreferWarm:  preferWarm,
		Argv:        body.Argv,
	})
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"runId": result.RunID, "containerName": result.ContainerName})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.List(r.Context()))
}

func (s *Server) handleRunMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.orch.Meta(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleRunInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.orch.Input(chi.URLParam(r, "id"), []byte(body.Data)); err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	fallback, err := s.orch.Stop(r.Context(), chi.URLParam(r, "id"))
	s.writeTeardownResult(w, fallback, err)
}

func (s *Server) handleKillRun(w http.ResponseWriter, r *http.Request) {
	fallback, err := s.orch.Kill(r.Context(), chi.URLParam(r, "id"))
	s.writeTeardownResult(w, fallback, err)
}

func (s *Server) handleCloseRun(w http.ResponseWriter, r *http.Request) {
	fallback, err := s.orch.Close(r.Context(), chi.URLParam(r, "id"))
	s.writeTeardownResult(w, fallback, err)
}

func (s *Server) writeTeardownResult(w http.ResponseWriter, fallback bool, err error) {
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "fallback": fallback})
}

// handleStopAll and handleKillAll implement spec §6's bulk endpoints.
// Runs currently tracked in the registry are always targeted; warm
// containers (which by construction carry no adz.runId label, spec §4.4
// invariant) are only swept when includeWarm=1 is set, per spec §9
// "Bulk operations and warm containers".
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.bulkTeardown(w, r, s.orch.Stop)
}

func (s *Server) handleKillAll(w http.ResponseWriter, r *http.Request) {
	s.bulkTeardown(w, r, s.orch.Kill)
}

func (s *Server) bulkTeardown(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, runID string) (bool, error)) {
	results := map[string]string{}
	for _, summary := range s.orch.List(r.Context()) {
		if _, err := op(r.Context(), summary.RunID); err != nil {
			results[summary.RunID] = err.Error()
		} else {
			results[summary.RunID] = "ok"
		}
	}

	if r.URL.Query().Get("includeWarm") == "1" {
		warm, err := s.pool.List(r.Context())
		if err != nil {
			results["warm"] = err.Error()
		} else {
			for _, c := range warm {
				if destroyErr := s.pool.Destroy(r.Context(), c.ID); destroyErr != nil {
					results[c.ID] = destroyErr.Error()
				} else {
					results[c.ID] = "ok"
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}
