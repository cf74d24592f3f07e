package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"guild_stats/internal/app"
	"guild_stats/internal/processing"
	"guild_stats/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files
const multipartMemory = 8 << 20

var errSheetsDisabled = errors.New("google sheets integration is not configured")

type healthResponse struct {
	Status string                 `json:"status"`
	Stats  processing.IngestStats `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Stats: s.coordinator.Tracker().GetStats()})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	dates, err := s.metrics.ListDates(r.Context(), season)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"season": season, "dates": dates})
}

func (s *Server) handleIndividual(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.metrics.IndividualMetrics(r.Context(), mux.Vars(r)["season"], q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleKvK(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	allies, err := serversParam(q.Get("allies"), "allies")
	if err != nil {
		writeError(w, r, err)
		return
	}
	enemies, err := serversParam(q.Get("enemies"), "enemies")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.metrics.KvKMetrics(r.Context(), mux.Vars(r)["season"], q.Get("start"), q.Get("end"), allies, enemies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	allies, err := serversParam(q.Get("allies"), "allies")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.metrics.KvKSeasonSummary(r.Context(), mux.Vars(r)["season"], q.Get("start"), q.Get("end"), allies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: invalid multipart form: %v", processing.ErrValidation, err)
		}
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	servers, err := serversParam(r.FormValue("servers"), "servers")
	if err != nil {
		writeError(w, r, err)
		return
	}

	headers := r.MultipartForm.File["files[]"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files"]
	}
	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		file, err := readUpload(fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		files = append(files, file)
	}

	s.logUploader(r)

	result, err := s.coordinator.Upload(r.Context(), processing.UploadRequest{
		Season:       mux.Vars(r)["season"],
		Title:        r.FormValue("title"),
		Files:        files,
		ValidServers: servers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSheetsImport(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errSheetsDisabled.Error()})
		return
	}

	var req processing.ImportRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Season = mux.Vars(r)["season"]

	s.logUploader(r)

	result, err := s.sheets.Import(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errSheetsDisabled.Error()})
		return
	}

	var req processing.PublishRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Season = mux.Vars(r)["season"]

	result, err := s.sheets.Publish(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// logUploader records which roster player is behind an admin mutation.
// Lookup failures only affect the log line.
func (s *Server) logUploader(r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || s.store == nil {
		return
	}

	event := zerolog.Ctx(r.Context()).Info().Str("uid", caller.UID).Str("email", caller.Email)
	user, err := store.FindUserByUID(r.Context(), s.store, caller.UID)
	if err == nil {
		event = event.Str("lord_id", user.LordID)
	}
	event.Msg("Admin mutation")
}

func readUpload(fh *multipart.FileHeader) (app.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return app.UploadFile{}, fmt.Errorf("%w: open %s: %v", processing.ErrValidation, fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return app.UploadFile{}, fmt.Errorf("%w: read %s: %v", processing.ErrValidation, fh.Filename, err)
	}
	return app.UploadFile{Name: fh.Filename, Data: data}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", processing.ErrValidation, err)
	}
	return nil
}

func serversParam(raw, name string) ([]int, error) {
	servers, err := app.ParseServerList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", processing.ErrValidation, name, err)
	}
	return servers, nil
}
