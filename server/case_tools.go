package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/casedock"
)

type caseListArgs struct {
	ConnArgs
	Status   string `json:"status,omitempty" jsonschema:"Filter by case status, e.g. open or closed."`
	Assignee string `json:"assignee,omitempty" jsonschema:"Filter by assignee."`
	Limit    int    `json:"limit,omitempty" jsonschema:"Page size. Server default when omitted."`
	Offset   int    `json:"offset,omitempty" jsonschema:"Zero-based index of the first case to return."`
}

type caseGetArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case to fetch."`
}

type caseCreateArgs struct {
	ConnArgs
	Subject     string   `json:"subject,omitempty" jsonschema:"One-line case subject. Required."`
	Description string   `json:"description,omitempty" jsonschema:"Longer problem description."`
	Priority    string   `json:"priority,omitempty" jsonschema:"Priority label, e.g. low, normal, high."`
	Assignee    string   `json:"assignee,omitempty" jsonschema:"User the case is assigned to."`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags to attach at creation."`
}

type caseUpdateArgs struct {
	ConnArgs
	CaseID      string  `json:"caseId,omitempty" jsonschema:"Id of the case to update."`
	Subject     *string `json:"subject,omitempty" jsonschema:"New subject. Omit to leave unchanged."`
	Description *string `json:"description,omitempty" jsonschema:"New description. Omit to leave unchanged."`
	Priority    *string `json:"priority,omitempty" jsonschema:"New priority. Omit to leave unchanged."`
	Assignee    *string `json:"assignee,omitempty" jsonschema:"New assignee. Omit to leave unchanged."`
	Status      *string `json:"status,omitempty" jsonschema:"New status. Omit to leave unchanged; use case_close to close with a resolution."`
}

type caseCloseArgs struct {
	ConnArgs
	CaseID     string `json:"caseId,omitempty" jsonschema:"Id of the case to close."`
	Resolution string `json:"resolution,omitempty" jsonschema:"Short resolution note recorded on the case."`
}

type caseCommentListArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case whose thread to read."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size. Server default when omitted."`
	Offset int    `json:"offset,omitempty" jsonschema:"Zero-based index of the first comment, oldest first."`
}

type caseCommentAddArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case to comment on."`
	Body   string `json:"body,omitempty" jsonschema:"Comment text. Required."`
}

func (ts *toolServer) registerCaseTools(m *mcp.Server) {
	addTool(ts, m, "case_list",
		"List support cases in the Casedock deployment, optionally filtered by status and assignee, with offset pagination.",
		ts.handleCaseList)
	addTool(ts, m, "case_get",
		"Fetch a single case by id, including its tags and current status.",
		ts.handleCaseGet)
	addTool(ts, m, "case_create",
		"Open a new support case.",
		ts.handleCaseCreate)
	addTool(ts, m, "case_update",
		"Apply a partial update to a case. Only the supplied fields change.",
		ts.handleCaseUpdate)
	addTool(ts, m, "case_close",
		"Close a case, recording an optional resolution note.",
		ts.handleCaseClose)
	addTool(ts, m, "case_comment_list",
		"Read a case's discussion thread, oldest first.",
		ts.handleCaseCommentList)
	addTool(ts, m, "case_comment_add",
		"Append a comment to a case's discussion thread.",
		ts.handleCaseCommentAdd)
}

func (ts *toolServer) handleCaseList(ctx context.Context, in caseListArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	page, err := client.ListCases(ctx, casedock.CaseListParams{
		Status:   in.Status,
		Assignee: in.Assignee,
		Page:     casedock.PageParams{Limit: in.Limit, Offset: in.Offset},
	})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, page), nil
}

func (ts *toolServer) handleCaseGet(ctx context.Context, in caseGetArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	c, err := client.GetCase(ctx, in.CaseID)
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, c), nil
}

func (ts *toolServer) handleCaseCreate(ctx context.Context, in caseCreateArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	c, err := client.CreateCase(ctx, casedock.CaseCreateParams{
		Subject:     in.Subject,
		Description: in.Description,
		Priority:    in.Priority,
		Assignee:    in.Assignee,
		Tags:        in.Tags,
	})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, c), nil
}

func (ts *toolServer) handleCaseUpdate(ctx context.Context, in caseUpdateArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	c, err := client.UpdateCase(ctx, in.CaseID, casedock.CaseUpdateParams{
		Subject:     in.Subject,
		Description: in.Description,
		Priority:    in.Priority,
		Assignee:    in.Assignee,
		Status:      in.Status,
	})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, c), nil
}

func (ts *toolServer) handleCaseClose(ctx context.Context, in caseCloseArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	c, err := client.CloseCase(ctx, in.CaseID, in.Resolution)
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, c), nil
}

func (ts *toolServer) handleCaseCommentList(ctx context.Context, in caseCommentListArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	page, err := client.ListCaseComments(ctx, in.CaseID, casedock.PageParams{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, page), nil
}

func (ts *toolServer) handleCaseCommentAdd(ctx context.Context, in caseCommentAddArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	comment, err := client.AddCaseComment(ctx, in.CaseID, in.Body)
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, comment), nil
}
