package casedock_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/casedock/casedock-mcp-go/casedock"
	"github.com/casedock/casedock-mcp-go/casedock/casedocktest"
)

func newTokenClient(t *testing.T) (*casedock.Client, *casedocktest.Server) {
	t.Helper()
	srv := casedocktest.NewServer(t)
	srv.AllowToken("tok-1")
	c, err := casedock.New(casedock.Config{BaseURL: srv.URL(), AccessToken: "tok-1"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c, srv
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := casedock.New(casedock.Config{AccessToken: "tok"}); err == nil {
		t.Fatal("New() without base url succeeded, want error")
	}
	if _, err := casedock.New(casedock.Config{BaseURL: "not a url", AccessToken: "tok"}); err == nil {
		t.Fatal("New() with malformed base url succeeded, want error")
	}
	if _, err := casedock.New(casedock.Config{BaseURL: "https://x.example.com"}); err == nil {
		t.Fatal("New() without credentials succeeded, want error")
	}
}

func TestBearerTokenAuth(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	srv.SeedCase(casedock.Case{Subject: "Printer on fire"})

	page, err := c.ListCases(ctx, casedock.CaseListParams{})
	if err != nil {
		t.Fatalf("ListCases() failed: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("ListCases() = %+v, want the seeded case", page)
	}
	if page.Items[0].Subject != "Printer on fire" {
		t.Fatalf("unexpected case subject %q", page.Items[0].Subject)
	}

	// Every request carries a correlation id.
	if srv.LastRequestID() == "" {
		t.Fatal("request carried no X-Request-Id header")
	}
}

func TestRejectedBearerToken(t *testing.T) {
	ctx := t.Context()
	srv := casedocktest.NewServer(t)
	srv.AllowToken("good")

	c, err := casedock.New(casedock.Config{BaseURL: srv.URL(), AccessToken: "bad"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.ListCases(ctx, casedock.CaseListParams{})
	ae, ok := casedock.AsAPIError(err)
	if !ok {
		t.Fatalf("ListCases() error = %v, want *APIError", err)
	}
	if ae.StatusCode != 401 || ae.Code != "unauthorized" {
		t.Fatalf("unexpected API error: %+v", ae)
	}
}

func TestClientCredentialsFlow(t *testing.T) {
	ctx := t.Context()
	srv := casedocktest.NewServer(t)
	srv.AllowClient("client-1", "hunter2")
	srv.SeedCase(casedock.Case{Subject: "VPN broken"})

	c, err := casedock.New(casedock.Config{
		BaseURL:      srv.URL(),
		ClientID:     "client-1",
		ClientSecret: "hunter2",
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// The client fetches a token from /oauth/token, then calls the API with it.
	page, err := c.ListCases(ctx, casedock.CaseListParams{})
	if err != nil {
		t.Fatalf("ListCases() via client credentials failed: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("ListCases().Total = %d, want 1", page.Total)
	}

	// The cached token is reused across calls.
	if _, err := c.ListTags(ctx, casedock.PageParams{}); err != nil {
		t.Fatalf("ListTags() failed: %v", err)
	}
}

func TestClientCredentialsRejected(t *testing.T) {
	ctx := t.Context()
	srv := casedocktest.NewServer(t)
	srv.AllowClient("client-1", "hunter2")

	c, err := casedock.New(casedock.Config{
		BaseURL:      srv.URL(),
		ClientID:     "client-1",
		ClientSecret: "wrong",
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.ListCases(ctx, casedock.CaseListParams{})
	if err == nil {
		t.Fatal("ListCases() with bad client secret succeeded, want error")
	}
	if !strings.Contains(err.Error(), "obtain access token") {
		t.Fatalf("error %v does not point at the token exchange", err)
	}
}

func TestCaseLifecycle(t *testing.T) {
	ctx := t.Context()
	c, _ := newTokenClient(t)

	created, err := c.CreateCase(ctx, casedock.CaseCreateParams{
		Subject:  "Disk full on build agent",
		Priority: "high",
		Tags:     []string{"infra"},
	})
	if err != nil {
		t.Fatalf("CreateCase() failed: %v", err)
	}
	if created.ID == "" || created.Status != "open" || created.Number == 0 {
		t.Fatalf("CreateCase() = %+v, want populated open case", created)
	}

	got, err := c.GetCase(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCase() failed: %v", err)
	}
	if got.Subject != created.Subject {
		t.Fatalf("GetCase().Subject = %q, want %q", got.Subject, created.Subject)
	}

	assignee := "sam"
	updated, err := c.UpdateCase(ctx, created.ID, casedock.CaseUpdateParams{Assignee: &assignee})
	if err != nil {
		t.Fatalf("UpdateCase() failed: %v", err)
	}
	if updated.Assignee != "sam" || updated.Priority != "high" {
		t.Fatalf("UpdateCase() = %+v, want only assignee changed", updated)
	}

	closed, err := c.CloseCase(ctx, created.ID, "cleaned old artifacts")
	if err != nil {
		t.Fatalf("CloseCase() failed: %v", err)
	}
	if closed.Status != "closed" {
		t.Fatalf("CloseCase().Status = %q, want closed", closed.Status)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	ctx := t.Context()
	c, _ := newTokenClient(t)

	_, err := c.GetCase(ctx, "case-404")
	ae, ok := casedock.AsAPIError(err)
	if !ok || !ae.IsNotFound() {
		t.Fatalf("GetCase(missing) error = %v, want not-found *APIError", err)
	}
	if ae.Code != "case_not_found" {
		t.Fatalf("error code = %q, want case_not_found", ae.Code)
	}
}

func TestParameterValidationIsLocal(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)

	// Empty ids are rejected before any request is made.
	if _, err := c.GetCase(ctx, ""); err == nil {
		t.Fatal("GetCase(\"\") succeeded, want error")
	}
	if _, err := c.CreateCase(ctx, casedock.CaseCreateParams{}); err == nil {
		t.Fatal("CreateCase(no subject) succeeded, want error")
	}
	if _, err := c.AddCaseComment(ctx, "case-1", ""); err == nil {
		t.Fatal("AddCaseComment(empty body) succeeded, want error")
	}
	if err := c.AttachTag(ctx, "", "infra"); err == nil {
		t.Fatal("AttachTag(no case) succeeded, want error")
	}
	if srv.APICalls() != 0 {
		t.Fatalf("local validation leaked %d requests to the server", srv.APICalls())
	}
}

func TestCommentsAndParticipants(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	seeded := srv.SeedCase(casedock.Case{Subject: "Badge reader offline"})

	comment, err := c.AddCaseComment(ctx, seeded.ID, "Swapped the unit, monitoring.")
	if err != nil {
		t.Fatalf("AddCaseComment() failed: %v", err)
	}
	if comment.ID == "" || comment.Body == "" {
		t.Fatalf("AddCaseComment() = %+v, want populated comment", comment)
	}

	comments, err := c.ListCaseComments(ctx, seeded.ID, casedock.PageParams{})
	if err != nil {
		t.Fatalf("ListCaseComments() failed: %v", err)
	}
	if len(comments.Items) != 1 {
		t.Fatalf("ListCaseComments() returned %d comments, want 1", len(comments.Items))
	}

	part, err := c.AddParticipant(ctx, seeded.ID, casedock.ParticipantAddParams{Email: "sam@example.com"})
	if err != nil {
		t.Fatalf("AddParticipant() failed: %v", err)
	}
	if part.Role != "collaborator" {
		t.Fatalf("AddParticipant().Role = %q, want server default collaborator", part.Role)
	}

	if err := c.RemoveParticipant(ctx, seeded.ID, part.ID); err != nil {
		t.Fatalf("RemoveParticipant() failed: %v", err)
	}
	parts, err := c.ListParticipants(ctx, seeded.ID, casedock.PageParams{})
	if err != nil {
		t.Fatalf("ListParticipants() failed: %v", err)
	}
	if len(parts.Items) != 0 {
		t.Fatalf("ListParticipants() returned %d after removal, want 0", len(parts.Items))
	}
}

func TestTags(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	a := srv.SeedCase(casedock.Case{Subject: "a", Tags: []string{"infra"}})
	srv.SeedCase(casedock.Case{Subject: "b", Tags: []string{"infra", "urgent"}})

	tags, err := c.ListTags(ctx, casedock.PageParams{})
	if err != nil {
		t.Fatalf("ListTags() failed: %v", err)
	}
	if len(tags.Items) != 2 {
		t.Fatalf("ListTags() returned %d tags, want 2", len(tags.Items))
	}
	if tags.Items[0].Name != "infra" || tags.Items[0].CaseCount != 2 {
		t.Fatalf("ListTags()[0] = %+v, want infra with 2 cases", tags.Items[0])
	}

	if err := c.AttachTag(ctx, a.ID, "urgent"); err != nil {
		t.Fatalf("AttachTag() failed: %v", err)
	}
	if err := c.DetachTag(ctx, a.ID, "infra"); err != nil {
		t.Fatalf("DetachTag() failed: %v", err)
	}
	got, err := c.GetCase(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetCase() failed: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "urgent" {
		t.Fatalf("case tags = %v, want [urgent]", got.Tags)
	}
}

func TestDataViews(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	srv.SeedDataView(
		casedock.DataView{
			ID:   "view-aging",
			Name: "Aging cases",
			Parameters: []casedock.DataViewParameter{
				{Name: "min_age_days", Type: "number", Required: true},
			},
		},
		[]string{"case", "age_days"},
		[][]any{{"case-1", 12.0}, {"case-2", 44.0}, {"case-3", 90.0}},
	)

	views, err := c.ListDataViews(ctx, casedock.PageParams{})
	if err != nil {
		t.Fatalf("ListDataViews() failed: %v", err)
	}
	if len(views.Items) != 1 || views.Items[0].ID != "view-aging" {
		t.Fatalf("ListDataViews() = %+v, want the seeded view", views)
	}

	// Missing required parameter is an API error.
	_, err = c.RunDataView(ctx, "view-aging", casedock.DataViewRunParams{})
	if ae, ok := casedock.AsAPIError(err); !ok || ae.Code != "missing_parameter" {
		t.Fatalf("RunDataView(no params) error = %v, want missing_parameter", err)
	}

	res, err := c.RunDataView(ctx, "view-aging", casedock.DataViewRunParams{
		Parameters: map[string]any{"min_age_days": 10},
		Page:       casedock.PageParams{Limit: 2, Offset: 1},
	})
	if err != nil {
		t.Fatalf("RunDataView() failed: %v", err)
	}
	if res.Total != 3 || len(res.Rows) != 2 || res.Offset != 1 {
		t.Fatalf("RunDataView() window = %+v, want rows 2-3 of 3", res)
	}
	if len(res.Columns) != 2 {
		t.Fatalf("RunDataView().Columns = %v, want 2 columns", res.Columns)
	}
}

func TestPagination(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	for i := 0; i < 7; i++ {
		srv.SeedCase(casedock.Case{Subject: "bulk"})
	}

	page, err := c.ListCases(ctx, casedock.CaseListParams{Page: casedock.PageParams{Limit: 3, Offset: 5}})
	if err != nil {
		t.Fatalf("ListCases() failed: %v", err)
	}
	if page.Total != 7 || len(page.Items) != 2 || page.Offset != 5 || page.Limit != 3 {
		t.Fatalf("ListCases() window = %+v, want final 2 of 7", page)
	}
}

func TestStatusFilter(t *testing.T) {
	ctx := t.Context()
	c, srv := newTokenClient(t)
	srv.SeedCase(casedock.Case{Subject: "open one"})
	srv.SeedCase(casedock.Case{Subject: "closed one", Status: "closed"})

	page, err := c.ListCases(ctx, casedock.CaseListParams{Status: "closed"})
	if err != nil {
		t.Fatalf("ListCases() failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Subject != "closed one" {
		t.Fatalf("ListCases(status=closed) = %+v, want only the closed case", page)
	}
}

func TestAPIErrorWrapping(t *testing.T) {
	ctx := t.Context()
	c, _ := newTokenClient(t)

	_, err := c.GetCase(ctx, "missing")
	var ae *casedock.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("error %v not unwrappable to *APIError", err)
	}
	if ae.RequestID == "" {
		t.Fatal("APIError carries no request id")
	}
	if !strings.Contains(ae.Error(), "case_not_found") {
		t.Fatalf("Error() = %q, want the server code included", ae.Error())
	}
}
