package casedock

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Case is a support case.
type Case struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is one entry in a case's discussion thread.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CaseListParams filters ListCases. Zero values apply no filter.
type CaseListParams struct {
	Status   string
	Assignee string
	Page     PageParams
}

// ListCases returns a page of cases matching the filters.
func (c *Client) ListCases(ctx context.Context, p CaseListParams) (*List[Case], error) {
	q := url.Values{}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Assignee != "" {
		q.Set("assignee", p.Assignee)
	}
	p.Page.applyTo(q)

	var out List[Case]
	if err := c.do(ctx, http.MethodGet, "/cases", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCase fetches a single case by id.
func (c *Client) GetCase(ctx context.Context, id string) (*Case, error) {
	if id == "" {
		return nil, errors.New("casedock: case id is required")
	}
	var out Case
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaseCreateParams describes a new case.
type CaseCreateParams struct {
	Subject     string   `json:"subject"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateCase opens a new case.
func (c *Client) CreateCase(ctx context.Context, p CaseCreateParams) (*Case, error) {
	if p.Subject == "" {
		return nil, errors.New("casedock: case subject is required")
	}
	var out Case
	if err := c.do(ctx, http.MethodPost, "/cases", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaseUpdateParams is a partial update; nil fields are left unchanged.
type CaseUpdateParams struct {
	Subject     *string `json:"subject,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// UpdateCase applies a partial update and returns the new state.
func (c *Client) UpdateCase(ctx context.Context, id string, p CaseUpdateParams) (*Case, error) {
	if id == "" {
		return nil, errors.New("casedock: case id is required")
	}
	var out Case
	if err := c.do(ctx, http.MethodPatch, "/cases/"+url.PathEscape(id), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseCase moves the case to the closed state, recording the resolution.
func (c *Client) CloseCase(ctx context.Context, id, resolution string) (*Case, error) {
	if id == "" {
		return nil, errors.New("casedock: case id is required")
	}
	body := struct {
		Resolution string `json:"resolution,omitempty"`
	}{Resolution: resolution}
	var out Case
	if err := c.do(ctx, http.MethodPost, "/cases/"+url.PathEscape(id)+"/close", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCaseComments returns a page of the case's discussion thread, oldest
// first.
func (c *Client) ListCaseComments(ctx context.Context, caseID string, page PageParams) (*List[Comment], error) {
	if caseID == "" {
		return nil, errors.New("casedock: case id is required")
	}
	q := url.Values{}
	page.applyTo(q)

	var out List[Comment]
	if err := c.do(ctx, http.MethodGet, "/cases/"+url.PathEscape(caseID)+"/comments", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCaseComment appends a comment to the case's thread.
func (c *Client) AddCaseComment(ctx context.Context, caseID, body string) (*Comment, error) {
	if caseID == "" {
		return nil, errors.New("casedock: case id is required")
	}
	if body == "" {
		return nil, errors.New("casedock: comment body is required")
	}
	payload := struct {
		Body string `json:"body"`
	}{Body: body}
	var out Comment
	if err := c.do(ctx, http.MethodPost, "/cases/"+url.PathEscape(caseID)+"/comments", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
