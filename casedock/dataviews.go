package casedock

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// DataView is a server-defined, parameterized report.
type DataView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Parameters  []DataViewParameter `json:"parameters,omitempty"`
}

// DataViewParameter describes one input a data view accepts.
type DataViewParameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// DataViewResult is a tabular result window from running a data view.
type DataViewResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Total   int      `json:"total"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}

// ListDataViews returns a page of the deployment's data views.
func (c *Client) ListDataViews(ctx context.Context, page PageParams) (*List[DataView], error) {
	q := url.Values{}
	page.applyTo(q)

	var out List[DataView]
	if err := c.do(ctx, http.MethodGet, "/data-views", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DataViewRunParams parameterizes one data view execution.
type DataViewRunParams struct {
	// Parameters binds the view's declared inputs by name.
	Parameters map[string]any `json:"parameters,omitempty"`
	Page       PageParams     `json:"page,omitempty"`
}

// RunDataView executes a data view and returns one result window.
func (c *Client) RunDataView(ctx context.Context, id string, p DataViewRunParams) (*DataViewResult, error) {
	if id == "" {
		return nil, errors.New("casedock: data view id is required")
	}
	body := struct {
		Parameters map[string]any `json:"parameters,omitempty"`
		Limit      int            `json:"limit,omitempty"`
		Offset     int            `json:"offset,omitempty"`
	}{Parameters: p.Parameters, Limit: p.Page.Limit, Offset: p.Page.Offset}

	var out DataViewResult
	if err := c.do(ctx, http.MethodPost, "/data-views/"+url.PathEscape(id)+"/run", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
