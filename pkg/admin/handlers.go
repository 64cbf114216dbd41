package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getmockd/mockd-statsd/internal/matching"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// RecordListResponse is the body of GET /records.
type RecordListResponse struct {
	Records []statsd.Record `json:"records"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
}

// CallListResponse is the body of GET /calls.
type CallListResponse struct {
	Calls []string `json:"calls"`
	Count int      `json:"count"`
}

// CallVerifyRequest is the body of POST /calls/verify.
type CallVerifyRequest struct {
	Call string `json:"call"`
}

// ValueResponse is the body of GET /values.
type ValueResponse struct {
	Name    string   `json:"name"`
	Tags    []string `json:"tags,omitempty"`
	Value   float64  `json:"value"`
	Members []string `json:"members,omitempty"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.server.Health())
}

func (a *API) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.server.Stats())
}

// handleListRecords handles GET /records?name=<glob>&type=<type>.
func (a *API) handleListRecords(w http.ResponseWriter, r *http.Request) {
	keep, err := recordFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	store := a.server.Store()
	records := store.Filter(keep)
	if records == nil {
		records = []statsd.Record{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records: records,
		Count:   len(records),
		Total:   store.Len(),
	})
}

// recordFilter builds a predicate from the name and type query parameters.
func recordFilter(r *http.Request) (func(statsd.Record) bool, error) {
	q := r.URL.Query()
	name := q.Get("name")
	if name != "" {
		if err := matching.ValidateGlob(name); err != nil {
			return nil, err
		}
	}
	var typ statsd.MetricType
	if s := q.Get("type"); s != "" {
		t, err := statsd.ParseType(s)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	return func(rec statsd.Record) bool {
		if name != "" && matching.MatchName(name, rec.Name) == 0 {
			return false
		}
		return typ == "" || rec.Type == typ
	}, nil
}

// handleReset handles DELETE /records.
func (a *API) handleReset(w http.ResponseWriter, _ *http.Request) {
	a.server.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	calls := a.server.Calls()
	if calls == nil {
		calls = []string{}
	}
	writeJSON(w, http.StatusOK, CallListResponse{Calls: calls, Count: len(calls)})
}

// handleVerifyCall handles POST /calls/verify, consuming one occurrence.
func (a *API) handleVerifyCall(w http.ResponseWriter, r *http.Request) {
	var req CallVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Call == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "call is required")
		return
	}
	if err := a.server.VerifyCall(req.Call); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValue handles GET /values?name=<name>&tag=<tag>...
func (a *API) handleValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return
	}
	tags := q["tag"]

	v, ok := a.server.Value(name, tags...)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no series named "+name)
		return
	}
	members, _ := a.server.SetContents(name, tags...)
	writeJSON(w, http.StatusOK, ValueResponse{Name: name, Tags: tags, Value: v, Members: members})
}

// handleVerify handles POST /verify. It blocks until the verification
// completes or the client goes away.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	timeout, err := req.timeout()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	m, err := req.Matcher()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidMatcher, err.Error())
		return
	}

	ctx := r.Context()
	var res statsd.Result
	switch req.Mode {
	case statsd.ModeAbsent:
		res = a.server.VerifyNoMetric(ctx, m, timeout)
	case statsd.ModeCount:
		res = a.server.VerifyCount(ctx, m, req.Count, timeout)
	default:
		res = a.server.Verify(ctx, m, timeout)
	}

	a.log.Debug("verify request", "mode", res.Mode, "matcher", res.Matcher, "passed", res.Passed)
	writeJSON(w, http.StatusOK, res)
}

// decodeBody decodes a JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "Invalid JSON in request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		} else {
			msg += ": " + err.Error()
		}
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, msg)
		return false
	}
	return true
}
