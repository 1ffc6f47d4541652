package mcp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

// RegisterPingTool registers the simple ping tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong' to check if the Nursery MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong_nursery"), nil
}

func collectionParam() mcp.ToolOption {
	return mcp.WithString("collection", mcp.Required(),
		mcp.Description("Collection name: children, feeding, sleep, diaper, health, milestones, mood, interactions or settings."))
}

// RegisterAddRecordTool registers the add_record tool.
func RegisterAddRecordTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("add_record",
		mcp.WithDescription("Adds a record to a collection and returns its id. Omit 'id' to get the next auto-assigned one."),
		collectionParam(),
		mcp.WithString("record", mcp.Required(), mcp.Description("The record as a JSON object, e.g. {\"childId\":1,\"timestamp\":\"2024-05-01T07:30:00Z\",\"type\":\"formula\",\"amount\":120,\"unit\":\"ml\"}.")),
	)
	s.AddTool(tool, addRecordHandler(store))
}

func addRecordHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, err := recordArg(request, "record")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		id, err := store.Add(ctx, collection, rec)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to add record to '%s': %v", collection, err)), nil
		}
		return jsonResult(map[string]any{"id": id})
	}
}

// RegisterGetRecordTool registers the get_record tool.
func RegisterGetRecordTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("get_record",
		mcp.WithDescription("Retrieves one record by its id."),
		collectionParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("The record id (a number, or 'appSettings' for settings).")),
	)
	s.AddTool(tool, getRecordHandler(store))
}

func getRecordHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, ok := request.Params.Arguments["id"]
		if !ok || id == nil {
			return mcp.NewToolResultError("'id' parameter is required."), nil
		}

		rec, found, err := store.Get(ctx, collection, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error retrieving record %v from '%s': %v", id, collection, err)), nil
		}
		if !found {
			return mcp.NewToolResultError(fmt.Sprintf("Record %v not found in '%s'.", id, collection)), nil
		}
		return jsonResult(rec)
	}
}

// RegisterUpdateRecordTool registers the update_record tool.
func RegisterUpdateRecordTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("update_record",
		mcp.WithDescription("Replaces the record with the same id, inserting it if absent. The record must carry its 'id'."),
		collectionParam(),
		mcp.WithString("record", mcp.Required(), mcp.Description("The full record as a JSON object, including 'id'.")),
	)
	s.AddTool(tool, updateRecordHandler(store))
}

func updateRecordHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, err := recordArg(request, "record")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := store.Update(ctx, collection, rec); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update record in '%s': %v", collection, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Record %v in '%s' updated successfully.", rec[records.KeyField], collection)), nil
	}
}

// RegisterDeleteRecordTool registers the delete_record tool.
func RegisterDeleteRecordTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("delete_record",
		mcp.WithDescription("Deletes a record by id. Deleting a missing record succeeds. Deleting a child leaves its records in place."),
		collectionParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("The record id.")),
	)
	s.AddTool(tool, deleteRecordHandler(store))
}

func deleteRecordHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, ok := request.Params.Arguments["id"]
		if !ok || id == nil {
			return mcp.NewToolResultError("'id' parameter is required."), nil
		}

		if err := store.Delete(ctx, collection, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete record %v from '%s': %v", id, collection, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Record %v in '%s' deleted.", id, collection)), nil
	}
}

// RegisterListRecordsTool registers the list_records tool.
func RegisterListRecordsTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("list_records",
		mcp.WithDescription("Lists every record of a collection, ordered by id."),
		collectionParam(),
	)
	s.AddTool(tool, listRecordsHandler(store))
}

func listRecordsHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		recs, err := store.GetAll(ctx, collection)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list '%s': %v", collection, err)), nil
		}
		return jsonResult(recs)
	}
}

// RegisterQueryIndexTool registers the query_index tool.
func RegisterQueryIndexTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("query_index",
		mcp.WithDescription("Finds the records whose indexed field equals a value, e.g. index 'childIdIndex' with value 1."),
		collectionParam(),
		mcp.WithString("index", mcp.Required(), mcp.Description("Index name, e.g. childIdIndex, typeIndex, moodIndex.")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to match. Numbers and JSON arrays (for composite indexes) are decoded.")),
	)
	s.AddTool(tool, queryIndexHandler(store))
}

func queryIndexHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		index, err := stringArg(request, "index")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := valueArg(request, "value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		recs, err := store.GetByIndex(ctx, collection, index, value)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to query '%s' by %s: %v", collection, index, err)), nil
		}
		return jsonResult(recs)
	}
}

// RegisterQueryDateRangeTool registers the query_date_range tool.
func RegisterQueryDateRangeTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("query_date_range",
		mcp.WithDescription("Finds the records whose time field lies within [start, end], both inclusive."),
		collectionParam(),
		mcp.WithString("index", mcp.Required(), mcp.Description("Single time-field index, e.g. timestampIndex, startTimeIndex, dateIndex.")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Range start: RFC 3339 time, YYYY-MM-DD, or epoch milliseconds.")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Range end, same forms as start.")),
	)
	s.AddTool(tool, queryDateRangeHandler(store))
}

func queryDateRangeHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		index, err := stringArg(request, "index")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start, err := valueArg(request, "start")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		end, err := valueArg(request, "end")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		recs, err := store.GetByDateRange(ctx, collection, index, start, end)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to query '%s' by %s range: %v", collection, index, err)), nil
		}
		return jsonResult(recs)
	}
}

// RegisterQueryChildRangeTool registers the query_child_range tool.
func RegisterQueryChildRangeTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("query_child_range",
		mcp.WithDescription("Finds one child's records whose time field lies within [start, end], both inclusive."),
		collectionParam(),
		mcp.WithString("index", mcp.Required(), mcp.Description("(childId, time) index, e.g. childTimestampIndex, childStartTimeIndex, childDateIndex.")),
		mcp.WithString("child_id", mcp.Required(), mcp.Description("The child's id.")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Range start: RFC 3339 time, YYYY-MM-DD, or epoch milliseconds.")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Range end, same forms as start.")),
	)
	s.AddTool(tool, queryChildRangeHandler(store))
}

func queryChildRangeHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := stringArg(request, "collection")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		index, err := stringArg(request, "index")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		childID, err := int64Arg(request, "child_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start, err := valueArg(request, "start")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		end, err := valueArg(request, "end")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		recs, err := store.GetChildRecordsByDateRange(ctx, collection, index, childID, start, end)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to query '%s' for child %d: %v", collection, childID, err)), nil
		}
		return jsonResult(recs)
	}
}

// RegisterDailySummaryTool registers the daily_summary tool.
func RegisterDailySummaryTool(s *server.MCPServer, d *diary.Diary) {
	tool := mcp.NewTool("daily_summary",
		mcp.WithDescription("Summarises one child's day: feeds, volume, sleep, diapers, last feeding and dominant mood."),
		mcp.WithString("child_id", mcp.Required(), mcp.Description("The child's id.")),
		mcp.WithString("day", mcp.Description("Day as YYYY-MM-DD (UTC). Defaults to today.")),
	)
	s.AddTool(tool, dailySummaryHandler(d))
}

func dailySummaryHandler(d *diary.Diary) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		childID, err := int64Arg(request, "child_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		day := time.Now().UTC()
		if s, _ := request.Params.Arguments["day"].(string); strings.TrimSpace(s) != "" {
			parsed, err := diary.ParseDate(s)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			day = parsed.Time
		}

		sum, err := d.DailySummary(ctx, childID, day)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to summarise child %d: %v", childID, err)), nil
		}
		return jsonResult(sum)
	}
}

// RegisterExportBackupTool registers the export_backup tool.
func RegisterExportBackupTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("export_backup",
		mcp.WithDescription("Exports every collection plus metadata as one JSON backup document."),
	)
	s.AddTool(tool, exportBackupHandler(store))
}

func exportBackupHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := store.ExportAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to export: %v", err)), nil
		}
		var buf bytes.Buffer
		if err := records.WriteSnapshot(&buf, snap); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize backup: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
}

// RegisterImportBackupTool registers the import_backup tool.
func RegisterImportBackupTool(s *server.MCPServer, store *records.Store) {
	tool := mcp.NewTool("import_backup",
		mcp.WithDescription("Replaces the content of every collection in the backup with the backup's records. Nothing changes if the backup is invalid."),
		mcp.WithString("backup", mcp.Required(), mcp.Description("The backup JSON document, as produced by export_backup.")),
	)
	s.AddTool(tool, importBackupHandler(store))
}

func importBackupHandler(store *records.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := stringArg(request, "backup")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		snap, err := records.ReadSnapshot(strings.NewReader(doc))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read backup: %v", err)), nil
		}
		if err := store.ImportAll(ctx, snap); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to import backup: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Backup imported: %d collections restored.", len(snap.Collections))), nil
	}
}

// RegisterOverviewTool registers get_overview, meant to be called at the start
// of a conversation to learn which children exist and how today went.
func RegisterOverviewTool(s *server.MCPServer, d *diary.Diary) {
	tool := mcp.NewTool("get_overview",
		mcp.WithDescription("Lists the children with today's summary for each and the active child from settings. Call this first."),
	)
	s.AddTool(tool, overviewHandler(d))
}

type childOverview struct {
	Child   diary.Child        `json:"child"`
	AgeInMo int                `json:"ageInMonths"`
	Today   diary.DailySummary `json:"today"`
}

func overviewHandler(d *diary.Diary) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		children, err := d.Children(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list children: %v", err)), nil
		}
		settings, err := d.Settings(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read settings: %v", err)), nil
		}

		now := time.Now().UTC()
		overview := make([]childOverview, 0, len(children))
		for _, c := range children {
			sum, err := d.DailySummary(ctx, c.ID, now)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to summarise child %d: %v", c.ID, err)), nil
			}
			overview = append(overview, childOverview{Child: c, AgeInMo: diary.AgeInMonths(c.BirthDate.Time, now), Today: sum})
		}
		return jsonResult(map[string]any{
			"activeChildId": settings.ActiveChildID,
			"children":      overview,
		})
	}
}
