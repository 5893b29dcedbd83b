package emulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/famgate/famgate/internal/docstore"
	"github.com/famgate/famgate/internal/model"
)

// docHandler exposes raw collection CRUD over HTTP. The protocol matches what
// the reststore adapter speaks against the hosted API.
type docHandler struct {
	store docstore.Store
}

func newDocHandler(store docstore.Store) *docHandler { return &docHandler{store: store} }

func (h *docHandler) collection(r *http.Request) docstore.Collection {
	return h.store.Collection(mux.Vars(r)["collection"])
}

// errStatus maps shared sentinels back onto wire status codes, the inverse of
// the client-side mapping.
func errStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *docHandler) CreateDoc(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.ID == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	doc, err := h.collection(r).Create(r.Context(), in.ID, in.Data)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *docHandler) GetDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := h.collection(r).Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *docHandler) UpdateDoc(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var pre docstore.Precondition
	if match := r.Header.Get("If-Match"); match != "" {
		v, err := strconv.ParseInt(match, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid If-Match version")
			return
		}
		pre.Version = v
	}
	doc, err := h.collection(r).Update(r.Context(), mux.Vars(r)["id"], in.Data, pre)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *docHandler) DeleteDoc(w http.ResponseWriter, r *http.Request) {
	if err := h.collection(r).Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *docHandler) QueryDocs(w http.ResponseWriter, r *http.Request) {
	var q docstore.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	docs, err := h.collection(r).Query(r.Context(), q)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	if docs == nil {
		docs = []*docstore.Doc{}
	}
	writeJSON(w, http.StatusOK, map[string][]*docstore.Doc{"docs": docs})
}

func (h *docHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Healthy(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
