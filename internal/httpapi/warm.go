package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mgeezy9/CLIBoard/internal/apierr"
	"github.com/Mgeezy9/CLIBoard/internal/dockerdriver"
	"github.com/Mgeezy9/CLIBoard/internal/pathguard"
)

func (s *Server) handleListWarm(w http.ResponseWriter, r *http.Request) {
	list, err := s.pool.List(r.Context())
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindRuntimeError, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type warmEnsureRequest struct {
	Engine    string `json:"engine"`
	Workspace string `json:"workspace"`
	Creds     string `json:"creds"`
	ReadOnly  bool   `json:"readOnly"`
	UIDGid    string `json:"uidgid"`
}

func (s *Server) handleWarmEnsure(w http.ResponseWriter, r *http.Request) {
	var body warmEnsureRequest
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

	fp := dockerdriver.MountFingerprint{Engine: engine, WorkspacePath: workspace, CredsPath: credsDir, ReadOnlyRoot: body.ReadOnly, UIDGid: body.UIDGid}
	id, err := s.pool.Ensure(r.Context(), fp)
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindRuntimeError, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"containerId": id})
}

func (s *Server) handleWarmDestroy(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindRuntimeError, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
