// Package server assembles the MCP tool surface of casedock-mcp.
//
// The package registers two families of tools on a
// [github.com/modelcontextprotocol/go-sdk/mcp.Server]:
//
//   - Session tools (session_open, session_update, session_close,
//     session_stats) manage entries in the credential session cache
//     directly.
//   - Remote tools (case_*, participant_*, tag_*, data_view_*) call the
//     Casedock REST API. Each one resolves credentials first, through the
//     shared {sessionId, credentials} connection block every remote tool's
//     arguments embed, then performs the call with a client built from the
//     resolved view.
//
// Failures inside a tool are reported as tool errors (IsError results) with
// stable, actionable messages rather than protocol errors, so an agent can
// read the text and correct its next call.
package server
