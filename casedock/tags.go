package casedock

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Tag is a label and its usage count across the deployment.
type Tag struct {
	Name      string `json:"name"`
	CaseCount int    `json:"caseCount"`
}

// ListTags returns a page of the deployment's tags.
func (c *Client) ListTags(ctx context.Context, page PageParams) (*List[Tag], error) {
	q := url.Values{}
	page.applyTo(q)

	var out List[Tag]
	if err := c.do(ctx, http.MethodGet, "/tags", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachTag adds a tag to a case, creating the tag if it is new.
func (c *Client) AttachTag(ctx context.Context, caseID, tag string) error {
	if caseID == "" {
		return errors.New("casedock: case id is required")
	}
	if tag == "" {
		return errors.New("casedock: tag name is required")
	}
	body := struct {
		Name string `json:"name"`
	}{Name: tag}
	return c.do(ctx, http.MethodPost, "/cases/"+url.PathEscape(caseID)+"/tags", nil, body, nil)
}

// DetachTag removes a tag from a case.
func (c *Client) DetachTag(ctx context.Context, caseID, tag string) error {
	if caseID == "" {
		return errors.New("casedock: case id is required")
	}
	if tag == "" {
		return errors.New("casedock: tag name is required")
	}
	path := "/cases/" + url.PathEscape(caseID) + "/tags/" + url.PathEscape(tag)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
