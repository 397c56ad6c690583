package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fieldtrack-go/internal/capture"
	"fieldtrack-go/internal/models"
)

type saveRequest struct {
	Tag  string `json:"tag"`
	Note string `json:"note"`
}

type draftRequest struct {
	Tag     string `json:"tag"`
	Note    string `json:"note"`
	Contact string `json:"contact"`
}

func ListLocations(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "1" {
			if _, err := d.Capture.LoadRemote(r.Context()); err != nil {
				d.Logger.Warnf("refresh session from remote: %v", err)
			}
		}
		entries := d.Capture.Session().List()
		WriteJSON(w, http.StatusOK, map[string]any{"locations": entries, "count": len(entries)})
	}
}

// SaveLocation answers 201 for an immediate save and 202 for a queued one.
func SaveLocation(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveRequest
		if err := decodeJSON(r, &req); err != nil && err != io.EOF {
			badRequest(w, "invalid json")
			return
		}
		res, err := d.Capture.Save(r.Context(), req.Tag, req.Note)
		if err != nil {
			WriteError(w, err)
			return
		}
		status := http.StatusCreated
		if res.Outcome == capture.OutcomeQueued {
			status = http.StatusAccepted
		}
		WriteJSON(w, status, res)
	}
}

func UpdateLocation(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row := strings.TrimSpace(chi.URLParam(r, "row"))
		if row == "" {
			badRequest(w, "row required")
			return
		}
		var patch models.RecordPatch
		if err := decodeJSON(r, &patch); err != nil {
			badRequest(w, "invalid json")
			return
		}
		if err := d.Capture.UpdateRecord(r.Context(), row, patch); err != nil {
			WriteError(w, err)
			return
		}
		entry, _ := d.Capture.Session().Find(row)
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "location": entry})
	}
}

func GetDraft(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, d.Capture.Draft())
	}
}

func PutDraft(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		d.Capture.SetDraft(req.Tag, req.Note, req.Contact)
		WriteJSON(w, http.StatusOK, d.Capture.Draft())
	}
}

func StagePhoto(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 20<<20))
		if err != nil {
			badRequest(w, "photo too large or unreadable")
			return
		}
		if len(data) == 0 {
			badRequest(w, "empty photo")
			return
		}
		d.Capture.StagePhoto(data, r.URL.Query().Get("filename"))
		WriteJSON(w, http.StatusOK, d.Capture.Draft())
	}
}

func ClearPhoto(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Capture.ClearPhoto()
		WriteJSON(w, http.StatusOK, d.Capture.Draft())
	}
}
