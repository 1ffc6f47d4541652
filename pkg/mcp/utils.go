package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/unowned-ai/nursery/pkg/records"
)

// stringArg returns a required non-empty string argument.
func stringArg(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.Params.Arguments[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("'%s' parameter is required and must be a non-empty string", name)
	}
	return v, nil
}

// valueArg returns an argument as a JSON-shaped value. Strings holding a JSON
// number, boolean or array are decoded so "1" finds a numeric childId.
func valueArg(request mcp.CallToolRequest, name string) (any, error) {
	v, ok := request.Params.Arguments[name]
	if !ok || v == nil {
		return nil, fmt.Errorf("'%s' parameter is required", name)
	}
	if s, ok := v.(string); ok {
		return records.ParseQueryValue(s), nil
	}
	return v, nil
}

// int64Arg reads an integer id given either as a number or a numeric string.
func int64Arg(request mcp.CallToolRequest, name string) (int64, error) {
	switch v := request.Params.Arguments[name].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("'%s' must be an integer", name)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("'%s' must be an integer", name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("'%s' parameter is required and must be an integer", name)
	}
}

// recordArg reads a record given as a JSON object or as a string holding one.
func recordArg(request mcp.CallToolRequest, name string) (records.Record, error) {
	switch v := request.Params.Arguments[name].(type) {
	case map[string]any:
		return records.Record(v), nil
	case string:
		var rec records.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("'%s' must be a JSON object: %v", name, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("'%s' must be a JSON object", name)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("'%s' parameter is required and must be a JSON object", name)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
