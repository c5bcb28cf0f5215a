package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/casedock"
)

type tagListArgs struct {
	ConnArgs
	Limit  int `json:"limit,omitempty" jsonschema:"Page size. Server default when omitted."`
	Offset int `json:"offset,omitempty" jsonschema:"Zero-based index of the first tag to return."`
}

type tagAttachArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case to tag."`
	Tag    string `json:"tag,omitempty" jsonschema:"Tag name to attach. Created on first use."`
}

type tagDetachArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case to untag."`
	Tag    string `json:"tag,omitempty" jsonschema:"Tag name to detach."`
}

type tagChangeInfo struct {
	CaseID string `json:"caseId"`
	Tag    string `json:"tag"`
	Action string `json:"action"`
}

func (ts *toolServer) registerTagTools(m *mcp.Server) {
	addTool(ts, m, "tag_list",
		"List the tags in use across the deployment, with how many cases carry each.",
		ts.handleTagList)
	addTool(ts, m, "tag_attach",
		"Attach a tag to a case. Attaching an already-present tag is a no-op.",
		ts.handleTagAttach)
	addTool(ts, m, "tag_detach",
		"Detach a tag from a case.",
		ts.handleTagDetach)
}

func (ts *toolServer) handleTagList(ctx context.Context, in tagListArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	page, err := client.ListTags(ctx, casedock.PageParams{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, page), nil
}

func (ts *toolServer) handleTagAttach(ctx context.Context, in tagAttachArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	if err := client.AttachTag(ctx, in.CaseID, in.Tag); err != nil {
		return nil, err
	}
	return ts.apiResult(rv, tagChangeInfo{CaseID: in.CaseID, Tag: in.Tag, Action: "attached"}), nil
}

func (ts *toolServer) handleTagDetach(ctx context.Context, in tagDetachArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	if err := client.DetachTag(ctx, in.CaseID, in.Tag); err != nil {
		return nil, err
	}
	return ts.apiResult(rv, tagChangeInfo{CaseID: in.CaseID, Tag: in.Tag, Action: "detached"}), nil
}
