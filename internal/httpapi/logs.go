package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Mgeezy9/CLIBoard/internal/pathguard"
)

// handleRunLogs streams a Run's transcript as SSE (spec §6 /runs/:id/logs).
// The first frame is a tail of the transcript (up to 64 KiB); with
// follow=1 subsequent frames are the live chunk stream, base64-encoded
// to preserve binary TTY data, ending with a terminal
// "[[PROCESS EXITED]] status=<status>" frame.
func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	follow := r.URL.Query().Get("follow") == "1"
	runID := chi.URLParam(r, "id")

	tail, ch, remove, err := s.orch.Listen(runID, tailMaxBytes)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	defer remove()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeChunkFrame(w, tail)
	flusher.Flush()

	if !follow {
		return
	}

	for {
		select {
		case chunk, open := <-ch:
			if !open {
				flusher.Flush()
				return
			}
			writeChunkFrame(w, chunk)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeChunkFrame(w http.ResponseWriter, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", base64.StdEncoding.EncodeToString(chunk))
}

// handleEvents is the SSE subscription to the Event Bus (spec §6 /events).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sub := s.bus.Subscribe()
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case event, open := <-sub.Events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleRunArtifacts implements spec §6's /runs/:id/artifacts summary:
// the transcript location plus the Artifact Scanner's bounded per-Run
// ring buffer of recently observed file-kind artifacts (SPEC_FULL §5).
func (s *Server) handleRunArtifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, err := s.orch.Meta(r.Context(), id)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	files, err := s.orch.ArtifactFiles(id)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transcripts": []string{fmt.Sprintf("%s/.runs", meta.Workspace)},
		"recentFiles": files,
	})
}

// handleRunFile streams a file under a Run's workspace (spec §6
// /runs/:id/file, spec §8 "p is a descendant of r.workspace or equals
// <workspace>/.runs").
func (s *Server) handleRunFile(w http.ResponseWriter, r *http.Request) {
	meta, err := s.orch.Meta(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	path, err := pathguard.Validate(r.URL.Query().Get("path"), []string{meta.Workspace})
	if err != nil {
		writeAPIErr(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, f)
}
