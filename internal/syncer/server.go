// Package syncer replicates the versioning object graph between vaults over
// HTTP. The server side exposes a repository's objects and refs; the client
// side implements fast-forward push and pull against such a server.
package syncer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/object"
)

// maxObjectSize bounds a single uploaded object. Notes are small; anything
// larger than this is a malformed or hostile request.
const maxObjectSize = 32 << 20

type refsBody struct {
	Refs map[string]string `json:"refs"`
}

type refUpdateBody struct {
	Target string `json:"target"`
	Old    string `json:"old"`
}

// Handler serves the object-exchange protocol for a repository:
//
//	GET  /refs            list branch and tag refs
//	GET  /objects/{cid}   fetch a raw object
//	POST /objects/{cid}   store a raw object (digest must match the CID)
//	POST /refs/{name}     compare-and-set a ref
//
// When token is non-empty, every request must carry it as a Bearer token.
func Handler(repo *object.Repository, token string) http.Handler {
	r := chi.NewRouter()
	if token != "" {
		r.Use(requireToken(token))
	}

	r.Get("/refs", func(w http.ResponseWriter, req *http.Request) {
		refs, err := repo.ListRefs()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, refsBody{Refs: refs})
	})

	r.Get("/objects/{cid}", func(w http.ResponseWriter, req *http.Request) {
		c, err := object.ParseCID(chi.URLParam(req, "cid"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid object id")
			return
		}
		data, err := repo.Store.Get(c)
		if err != nil {
			if errors.Is(err, apperr.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "object not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	})

	r.Post("/objects/{cid}", func(w http.ResponseWriter, req *http.Request) {
		c, err := object.ParseCID(chi.URLParam(req, "cid"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid object id")
			return
		}
		data, err := io.ReadAll(io.LimitReader(req.Body, maxObjectSize+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		if len(data) > maxObjectSize {
			writeError(w, http.StatusRequestEntityTooLarge, "object too large")
			return
		}
		stored, err := repo.Store.Put(data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !stored.Equals(c) {
			writeError(w, http.StatusBadRequest, "object digest does not match id")
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	r.Post("/refs/*", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "*")
		if !validRefName(name) {
			writeError(w, http.StatusBadRequest, "invalid ref name")
			return
		}
		var body refUpdateBody
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := repo.CompareAndSetRef(name, body.Old, body.Target); err != nil {
			switch {
			case errors.Is(err, apperr.ErrConflict):
				writeError(w, http.StatusConflict, "ref update is not a fast-forward")
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			auth := req.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func validRefName(name string) bool {
	if !strings.HasPrefix(name, object.HeadPrefix) && !strings.HasPrefix(name, object.TagPrefix) {
		return false
	}
	return !strings.Contains(name, "..")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
