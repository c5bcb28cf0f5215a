package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/casedock"
)

type participantListArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case whose participants to list."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size. Server default when omitted."`
	Offset int    `json:"offset,omitempty" jsonschema:"Zero-based index of the first participant to return."`
}

type participantAddArgs struct {
	ConnArgs
	CaseID string `json:"caseId,omitempty" jsonschema:"Id of the case to add the participant to."`
	Email  string `json:"email,omitempty" jsonschema:"Email address of the person to add. Required."`
	Role   string `json:"role,omitempty" jsonschema:"Relationship to the case, e.g. requester, collaborator, observer. Server default when omitted."`
}

type participantRemoveArgs struct {
	ConnArgs
	CaseID        string `json:"caseId,omitempty" jsonschema:"Id of the case."`
	ParticipantID string `json:"participantId,omitempty" jsonschema:"Id of the participant entry to remove, from participant_list."`
}

type participantRemoveInfo struct {
	CaseID        string `json:"caseId"`
	ParticipantID string `json:"participantId"`
	Removed       bool   `json:"removed"`
}

func (ts *toolServer) registerParticipantTools(m *mcp.Server) {
	addTool(ts, m, "participant_list",
		"List the people attached to a case.",
		ts.handleParticipantList)
	addTool(ts, m, "participant_add",
		"Attach a person to a case by email address.",
		ts.handleParticipantAdd)
	addTool(ts, m, "participant_remove",
		"Detach a participant from a case.",
		ts.handleParticipantRemove)
}

func (ts *toolServer) handleParticipantList(ctx context.Context, in participantListArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	page, err := client.ListParticipants(ctx, in.CaseID, casedock.PageParams{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, page), nil
}

func (ts *toolServer) handleParticipantAdd(ctx context.Context, in participantAddArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	part, err := client.AddParticipant(ctx, in.CaseID, casedock.ParticipantAddParams{Email: in.Email, Role: in.Role})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, part), nil
}

func (ts *toolServer) handleParticipantRemove(ctx context.Context, in participantRemoveArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	if err := client.RemoveParticipant(ctx, in.CaseID, in.ParticipantID); err != nil {
		return nil, err
	}
	return ts.apiResult(rv, participantRemoveInfo{
		CaseID:        in.CaseID,
		ParticipantID: in.ParticipantID,
		Removed:       true,
	}), nil
}
