package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/engine"
	ie "github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

var (
	errmap map[int][]error = map[int][]error{
		http.StatusBadRequest: []error{
			ie.ErrInvalidArg,
			ie.ErrNotSupported,
			ie.ErrNoPipeline,
		},
		http.StatusNotFound: []error{
			ie.ErrNotFound,
		},
		http.StatusConflict: []error{
			ie.ErrETagMismatch,
			ie.ErrInvalidState,
		},
		http.StatusServiceUnavailable: []error{
			ie.ErrEngineBusy,
		},
	}
)

// mapError returns the http status code for a given error from harvester, or
// http.StatusInternalServerError if the error is not recognised.
func mapError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for code, errs := range errmap {
		for _, e := range errs {
			if errors.Is(err, e) {
				return code
			}
		}
	}
	return http.StatusInternalServerError
}

func unmarshalQuery(w http.ResponseWriter, r *http.Request, out *structs.Query) error {
	q := r.URL.Query()

	if q.Has("limit") {
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad limit: %v", err)
		}
		out.Limit = limit
	}

	if q.Has("offset") {
		offset, err := strconv.Atoi(q.Get("offset"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad offset: %v", err)
		}
		out.Offset = offset
	}

	if q.Has("definition_ids") {
		out.DefinitionIDs = q["definition_ids"]
		for _, id := range out.DefinitionIDs {
			if !utils.IsValidID(id) {
				http.Error(w, "bad definition id", http.StatusBadRequest)
				return fmt.Errorf("bad definition id: %v", id)
			}
		}
	}
	if q.Has("statuses") {
		out.Statuses = []structs.Status{}
		for _, s := range q["statuses"] {
			st := structs.ToStatus(s)
			if st == "" {
				http.Error(w, "bad status", http.StatusBadRequest)
				return fmt.Errorf("bad status: %v", s)
			}
			out.Statuses = append(out.Statuses, st)
		}
	}
	if q.Has("tags") {
		for _, t := range q["tags"] {
			out.Tags = append(out.Tags, structs.Tag(t))
		}
	}
	if q.Has("is_full") {
		full, err := strconv.ParseBool(q.Get("is_full"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad is_full: %v", err)
		}
		out.IsFull = &full
	}

	out.Sanitize()
	return nil
}

func unmarshalJobQuery(w http.ResponseWriter, r *http.Request, out *api.JobQuery) error {
	for _, s := range r.URL.Query()["statuses"] {
		var st engine.Status
		err := st.UnmarshalText([]byte(s))
		if err != nil {
			http.Error(w, "bad status", http.StatusBadRequest)
			return fmt.Errorf("bad status: %v", s)
		}
		out.Statuses = append(out.Statuses, st)
	}
	return nil
}

// unmarshalJson reads the body of a request and attempts to unmarshal it into the given object.
// This function write an error to the writer if an error occurs, and returns the error.
func unmarshalJson(w http.ResponseWriter, r *http.Request, obj interface{}) error {
	if r.Body == nil {
		http.Error(w, "No body", http.StatusBadRequest)
		return fmt.Errorf("no body")
	}
	d := json.NewDecoder(r.Body)
	d.DisallowUnknownFields() // catch unwanted fields

	err := d.Decode(obj)
	if err != nil {
		// bad JSON or unrecognized json field
		http.Error(w, err.Error(), http.StatusBadRequest)
		return fmt.Errorf("bad json: %v", err)
	}

	return nil
}
