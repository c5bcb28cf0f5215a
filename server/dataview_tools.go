package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/casedock/casedock-mcp-go/casedock"
)

type dataViewListArgs struct {
	ConnArgs
	Limit  int `json:"limit,omitempty" jsonschema:"Page size. Server default when omitted."`
	Offset int `json:"offset,omitempty" jsonschema:"Zero-based index of the first view to return."`
}

type dataViewRunArgs struct {
	ConnArgs
	ViewID     string         `json:"viewId,omitempty" jsonschema:"Id of the data view to execute, from data_view_list."`
	Parameters map[string]any `json:"parameters,omitempty" jsonschema:"Values for the view's declared parameters, keyed by parameter name."`
	Limit      int            `json:"limit,omitempty" jsonschema:"Result window size. Server default when omitted."`
	Offset     int            `json:"offset,omitempty" jsonschema:"Zero-based index of the first result row."`
}

func (ts *toolServer) registerDataViewTools(m *mcp.Server) {
	addTool(ts, m, "data_view_list",
		"List the saved data views (reports) available in the deployment, including the parameters each declares.",
		ts.handleDataViewList)
	addTool(ts, m, "data_view_run",
		"Execute a data view and return one window of its tabular result.",
		ts.handleDataViewRun)
}

func (ts *toolServer) handleDataViewList(ctx context.Context, in dataViewListArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	page, err := client.ListDataViews(ctx, casedock.PageParams{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, page), nil
}

func (ts *toolServer) handleDataViewRun(ctx context.Context, in dataViewRunArgs) (*mcp.CallToolResult, error) {
	ctx, client, rv, err := ts.connect(ctx, in.ConnArgs)
	if err != nil {
		return nil, err
	}
	res, err := client.RunDataView(ctx, in.ViewID, casedock.DataViewRunParams{
		Parameters: in.Parameters,
		Page:       casedock.PageParams{Limit: in.Limit, Offset: in.Offset},
	})
	if err != nil {
		return nil, err
	}
	return ts.apiResult(rv, res), nil
}
