package mcp

import (
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarryhq/quarry/internal/fault"
)

// faultResult converts a tool fault into an MCP error result. The text
// carries the fault kind in brackets so clients can branch on it without a
// side channel; the message is already written for display.
func faultResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{
			Text: fmt.Sprintf("[%s] %v", fault.KindOf(err), err),
		}},
		IsError: true,
	}
}

// textResult wraps plain text in a success result.
func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// jsonResult marshals data into a text result. All structured tool output
// becomes JSON text; clients parse it.
func jsonResult(data any) *mcpsdk.CallToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{
				Text: fmt.Sprintf("[%s] marshaling result: %v", fault.KindBackend, err),
			}},
			IsError: true,
		}
	}
	return textResult(string(b))
}
