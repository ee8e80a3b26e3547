package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nguyengg/sealer"
	"github.com/nguyengg/sealer/errs"
)

type metadataRequest struct {
	Paths []string `json:"paths"`
}

type encryptRequest struct {
	Paths    []string                `json:"paths"`
	Output   string                  `json:"output"`
	Password sealer.Password         `json:"password"`
	Method   sealer.EncryptionMethod `json:"method"`
}

type decryptRequest struct {
	Archive   string          `json:"archive"`
	OutputDir string          `json:"outputDir"`
	Password  sealer.Password `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handlePassword(w http.ResponseWriter, _ *http.Request) {
	password, err := sealer.GeneratePassword()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"entries": s.engine.ListEntryMetadata(req.Paths)})
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	switch {
	case len(req.Paths) == 0:
		s.writeError(w, http.StatusBadRequest, errors.New("no paths to encrypt"))
		return
	case req.Output == "":
		s.writeError(w, http.StatusBadRequest, errors.New("no output file"))
		return
	case req.Password == "":
		s.writeError(w, http.StatusBadRequest, errors.New("no password"))
		return
	}

	if req.Method == 0 {
		req.Method = s.method
	}

	msg, err := s.engine.EncryptFiles(r.Context(), req.Paths, req.Output, req.Password, req.Method)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	switch {
	case req.Archive == "":
		s.writeError(w, http.StatusBadRequest, errors.New("no archive"))
		return
	case req.OutputDir == "":
		s.writeError(w, http.StatusBadRequest, errors.New("no output directory"))
		return
	}

	msg, err := s.engine.DecryptFile(r.Context(), req.Archive, req.OutputDir, req.Password)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.engine.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"busy":    s.engine.Busy(),
		"clients": s.hub.count(),
	})
}

// statusCode maps an error returned by sealer.Engine to the HTTP status of the response.
func statusCode(err error) int {
	if errors.Is(err, sealer.ErrBusy) {
		return http.StatusConflict
	}

	switch errs.KindOf(err) {
	case errs.InvalidPassword:
		return http.StatusUnauthorized
	case errs.Cancelled:
		return http.StatusConflict
	case errs.PathTraversal:
		return http.StatusUnprocessableEntity
	case errs.ResourceLimit:
		return http.StatusRequestEntityTooLarge
	case errs.Format, errs.Traversal:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: sealer.Message(err), Kind: string(errs.KindOf(err))}
	if errors.Is(err, sealer.ErrBusy) {
		resp.Kind = "busy"
	}

	s.writeJSON(w, statusCode(err), resp)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("write response error")
	}
}
