// Package casedocktest provides an in-memory fake of the Casedock REST API
// for tests. It implements the token endpoint for the client-credentials
// grant, bearer enforcement on API routes, and enough of the case,
// participant, tag, and data-view surface to exercise clients end to end.
package casedocktest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casedock/casedock-mcp-go/casedock"
)

// Server is a fake Casedock deployment backed by httptest.
type Server struct {
	hts *httptest.Server

	mu sync.Mutex

	// accepted credentials
	clientID     string
	clientSecret string
	bearerTokens map[string]bool

	// state
	cases       map[string]*caseRecord
	caseOrder   []string
	nextCaseNum int
	nextID      int
	views       map[string]*viewRecord
	viewOrder   []string

	lastRequestID string
	apiCalls      int
}

type caseRecord struct {
	c            casedock.Case
	comments     []casedock.Comment
	participants []casedock.Participant
}

type viewRecord struct {
	v       casedock.DataView
	columns []string
	rows    [][]any
}

// NewServer starts a fake deployment. It is closed automatically when the
// test finishes.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		bearerTokens: make(map[string]bool),
		cases:        make(map[string]*caseRecord),
		views:        make(map[string]*viewRecord),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", s.handleToken)
	mux.HandleFunc("GET /api/{version}/cases", s.handleListCases)
	mux.HandleFunc("POST /api/{version}/cases", s.handleCreateCase)
	mux.HandleFunc("GET /api/{version}/cases/{id}", s.handleGetCase)
	mux.HandleFunc("PATCH /api/{version}/cases/{id}", s.handleUpdateCase)
	mux.HandleFunc("POST /api/{version}/cases/{id}/close", s.handleCloseCase)
	mux.HandleFunc("GET /api/{version}/cases/{id}/comments", s.handleListComments)
	mux.HandleFunc("POST /api/{version}/cases/{id}/comments", s.handleAddComment)
	mux.HandleFunc("GET /api/{version}/cases/{id}/participants", s.handleListParticipants)
	mux.HandleFunc("POST /api/{version}/cases/{id}/participants", s.handleAddParticipant)
	mux.HandleFunc("DELETE /api/{version}/cases/{id}/participants/{pid}", s.handleRemoveParticipant)
	mux.HandleFunc("POST /api/{version}/cases/{id}/tags", s.handleAttachTag)
	mux.HandleFunc("DELETE /api/{version}/cases/{id}/tags/{tag}", s.handleDetachTag)
	mux.HandleFunc("GET /api/{version}/tags", s.handleListTags)
	mux.HandleFunc("GET /api/{version}/data-views", s.handleListViews)
	mux.HandleFunc("POST /api/{version}/data-views/{id}/run", s.handleRunView)

	s.hts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.mu.Lock()
			s.apiCalls++
			s.lastRequestID = r.Header.Get("X-Request-Id")
			s.mu.Unlock()
			if !s.authorized(r) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.hts.Close)
	return s
}

// URL is the deployment base URL, suitable as a credentials baseUrl.
func (s *Server) URL() string { return s.hts.URL }

// AllowToken registers a static bearer token the API will accept.
func (s *Server) AllowToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bearerTokens[tok] = true
}

// AllowClient registers the OAuth pair the token endpoint will accept.
func (s *Server) AllowClient(id, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = id
	s.clientSecret = secret
}

// SeedCase inserts a case, assigning id and number when absent, and returns
// the stored value.
func (s *Server) SeedCase(c casedock.Case) casedock.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCaseLocked(c)
}

// SeedDataView registers a data view together with the table it produces.
func (s *Server) SeedDataView(v casedock.DataView, columns []string, rows [][]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = s.newIDLocked("view")
	}
	s.views[v.ID] = &viewRecord{v: v, columns: columns, rows: rows}
	s.viewOrder = append(s.viewOrder, v.ID)
}

// LastRequestID reports the X-Request-Id of the most recent API call.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequestID
}

// APICalls reports how many API (non-token) requests the server has seen.
func (s *Server) APICalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiCalls
}

func (s *Server) insertCaseLocked(c casedock.Case) casedock.Case {
	if c.ID == "" {
		c.ID = s.newIDLocked("case")
	}
	s.nextCaseNum++
	if c.Number == 0 {
		c.Number = s.nextCaseNum
	}
	if c.Status == "" {
		c.Status = "open"
	}
	now := time.Now().UTC().Truncate(time.Second)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	s.cases[c.ID] = &caseRecord{c: c}
	s.caseOrder = append(s.caseOrder, c.ID)
	return c
}

func (s *Server) newIDLocked(kind string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", kind, s.nextID)
}

func (s *Server) authorized(r *http.Request) bool {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bearerTokens[strings.TrimPrefix(h, prefix)]
}

// handleToken implements the client-credentials grant. Client auth is
// accepted via basic auth or form fields, matching what x/oauth2 sends in
// either auth style.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
		writeError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type must be client_credentials")
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id = r.PostForm.Get("client_id")
		secret = r.PostForm.Get("client_secret")
	}

	s.mu.Lock()
	valid := s.clientID != "" && id == s.clientID && secret == s.clientSecret
	var tok string
	if valid {
		tok = fmt.Sprintf("issued-%d", len(s.bearerTokens)+1)
		s.bearerTokens[tok] = true
	}
	s.mu.Unlock()

	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid_client", "unknown client id or secret")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	assignee := r.URL.Query().Get("assignee")

	s.mu.Lock()
	var matched []casedock.Case
	for _, id := range s.caseOrder {
		rec, ok := s.cases[id]
		if !ok {
			continue
		}
		if status != "" && rec.c.Status != status {
			continue
		}
		if assignee != "" && rec.c.Assignee != assignee {
			continue
		}
		matched = append(matched, rec.c)
	}
	s.mu.Unlock()

	writePage(w, r, matched)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var p casedock.CaseCreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed case payload")
		return
	}
	if p.Subject == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_subject", "subject is required")
		return
	}

	s.mu.Lock()
	c := s.insertCaseLocked(casedock.Case{
		Subject:     p.Subject,
		Description: p.Description,
		Priority:    p.Priority,
		Assignee:    p.Assignee,
		Tags:        p.Tags,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var c casedock.Case
	if ok {
		c = rec.c
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	var p casedock.CaseUpdateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed update payload")
		return
	}

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var c casedock.Case
	if ok {
		if p.Subject != nil {
			rec.c.Subject = *p.Subject
		}
		if p.Description != nil {
			rec.c.Description = *p.Description
		}
		if p.Priority != nil {
			rec.c.Priority = *p.Priority
		}
		if p.Assignee != nil {
			rec.c.Assignee = *p.Assignee
		}
		if p.Status != nil {
			rec.c.Status = *p.Status
		}
		rec.c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
		c = rec.c
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCloseCase(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Resolution string `json:"resolution"`
	}
	_ = json.NewDecoder(r.Body).Decode(&p)

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var c casedock.Case
	if ok {
		rec.c.Status = "closed"
		rec.c.UpdatedAt = time.Now().UTC().Truncate(time.Second)
		c = rec.c
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var comments []casedock.Comment
	if ok {
		comments = append(comments, rec.comments...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writePage(w, r, comments)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Body == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_body", "comment body is required")
		return
	}

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var c casedock.Comment
	if ok {
		c = casedock.Comment{
			ID:        s.newIDLocked("comment"),
			Author:    "api",
			Body:      p.Body,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		rec.comments = append(rec.comments, c)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var parts []casedock.Participant
	if ok {
		parts = append(parts, rec.participants...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writePage(w, r, parts)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var p casedock.ParticipantAddParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_email", "participant email is required")
		return
	}
	if p.Role == "" {
		p.Role = "collaborator"
	}

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	var part casedock.Participant
	if ok {
		part = casedock.Participant{
			ID:      s.newIDLocked("participant"),
			Email:   p.Email,
			Role:    p.Role,
			AddedAt: time.Now().UTC().Truncate(time.Second),
		}
		rec.participants = append(rec.participants, part)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	writeJSON(w, http.StatusCreated, part)
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	pid := r.PathValue("pid")

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	removed := false
	if ok {
		for i, part := range rec.participants {
			if part.ID == pid {
				rec.participants = append(rec.participants[:i], rec.participants[i+1:]...)
				removed = true
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "participant_not_found", "no such participant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachTag(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_tag", "tag name is required")
		return
	}

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	if ok {
		found := false
		for _, t := range rec.c.Tags {
			if t == p.Name {
				found = true
				break
			}
		}
		if !found {
			rec.c.Tags = append(rec.c.Tags, p.Name)
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")

	s.mu.Lock()
	rec, ok := s.cases[r.PathValue("id")]
	removed := false
	if ok {
		for i, t := range rec.c.Tags {
			if t == tag {
				rec.c.Tags = append(rec.c.Tags[:i], rec.c.Tags[i+1:]...)
				removed = true
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "case_not_found", "no such case")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "tag_not_found", "tag not attached to case")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := make(map[string]int)
	var order []string
	for _, id := range s.caseOrder {
		rec, ok := s.cases[id]
		if !ok {
			continue
		}
		for _, t := range rec.c.Tags {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	s.mu.Unlock()

	tags := make([]casedock.Tag, 0, len(order))
	for _, name := range order {
		tags = append(tags, casedock.Tag{Name: name, CaseCount: counts[name]})
	}
	writePage(w, r, tags)
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	views := make([]casedock.DataView, 0, len(s.viewOrder))
	for _, id := range s.viewOrder {
		if rec, ok := s.views[id]; ok {
			views = append(views, rec.v)
		}
	}
	s.mu.Unlock()

	writePage(w, r, views)
}

func (s *Server) handleRunView(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Parameters map[string]any `json:"parameters"`
		Limit      int            `json:"limit"`
		Offset     int            `json:"offset"`
	}
	_ = json.NewDecoder(r.Body).Decode(&p)

	s.mu.Lock()
	rec, ok := s.views[r.PathValue("id")]
	var columns []string
	var rows [][]any
	var declared []casedock.DataViewParameter
	if ok {
		columns = rec.columns
		rows = rec.rows
		declared = rec.v.Parameters
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "data_view_not_found", "no such data view")
		return
	}
	for _, param := range declared {
		if param.Required {
			if _, present := p.Parameters[param.Name]; !present {
				writeError(w, http.StatusUnprocessableEntity, "missing_parameter",
					fmt.Sprintf("parameter %q is required", param.Name))
				return
			}
		}
	}

	total := len(rows)
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := p.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, casedock.DataViewResult{
		Columns: columns,
		Rows:    rows[offset:end],
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	})
}

// writePage applies limit/offset query parameters and writes the standard
// list envelope.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	total := len(items)
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, casedock.List[T]{
		Items:  items[offset:end],
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
