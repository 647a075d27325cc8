package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/parser"
	"github.com/thkim0515/gagyebu/internal/rules"
	"github.com/thkim0515/gagyebu/internal/store"
	"github.com/thkim0515/gagyebu/internal/testutil"
)

func testServer(t *testing.T) (*Server, store.Ledger) {
	t.Helper()

	ledger := testutil.TestStore(t)
	re := rules.NewEngine()
	srv := New(ledger, parser.New(re), re)
	return srv, ledger
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_chapters":
		result, err = srv.listChapters(ctx, req)
	case "list_records":
		result, err = srv.listRecords(ctx, req)
	case "add_record":
		result, err = srv.addRecord(ctx, req)
	case "parse_notification":
		result, err = srv.parseNotification(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestAddRecordCreatesChapter(t *testing.T) {
	srv, ledger := testServer(t)

	res := callTool(t, srv, "add_record", map[string]interface{}{
		"title":  "스타벅스",
		"amount": float64(5000),
		"type":   "expense",
		"date":   "2025-12-03",
	})
	if res.IsError {
		t.Fatalf("add_record failed: %s", resultText(t, res))
	}

	chapters, err := ledger.Chapters()
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 1 || chapters[0].Title != "2025년 12월" {
		t.Fatalf("chapters = %+v", chapters)
	}

	records, err := ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Category != "식비" {
		t.Fatalf("category = %q, want classified 식비", records[0].Category)
	}
}

func TestAddRecordReusesChapter(t *testing.T) {
	srv, ledger := testServer(t)

	callTool(t, srv, "add_record", map[string]interface{}{
		"title": "스타벅스", "amount": float64(5000), "type": "expense", "date": "2025-12-03",
	})
	callTool(t, srv, "add_record", map[string]interface{}{
		"title": "쿠팡", "amount": float64(12000), "type": "expense", "date": "2025-12-10",
	})

	chapters, err := ledger.Chapters()
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 1 {
		t.Fatalf("chapters = %d, want 1 (same month)", len(chapters))
	}
}

func TestAddRecordValidation(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "add_record", map[string]interface{}{
		"title": "x", "amount": float64(100), "type": "sideways", "date": "2025-12-03",
	})
	if !res.IsError {
		t.Fatal("expected error for invalid type")
	}

	res = callTool(t, srv, "add_record", map[string]interface{}{
		"title": "x", "amount": float64(100), "type": "expense", "date": "03-12-2025",
	})
	if !res.IsError {
		t.Fatal("expected error for bad date format")
	}
}

func TestListRecordsByDate(t *testing.T) {
	srv, _ := testServer(t)

	callTool(t, srv, "add_record", map[string]interface{}{
		"title": "스타벅스", "amount": float64(5000), "type": "expense", "date": "2025-12-03",
	})
	callTool(t, srv, "add_record", map[string]interface{}{
		"title": "쿠팡", "amount": float64(12000), "type": "expense", "date": "2025-12-10",
	})

	text := resultText(t, callTool(t, srv, "list_records", map[string]interface{}{
		"date": "2025-12-03",
	}))
	if !strings.Contains(text, "스타벅스") || strings.Contains(text, "쿠팡") {
		t.Fatalf("filtered list = %s", text)
	}
}

func TestListChapters(t *testing.T) {
	srv, ledger := testServer(t)

	if _, err := ledger.AddChapter(models.Chapter{Title: "2025년 11월"}); err != nil {
		t.Fatal(err)
	}

	text := resultText(t, callTool(t, srv, "list_chapters", nil))
	if !strings.Contains(text, "2025년 11월") {
		t.Fatalf("list_chapters = %s", text)
	}
}

func TestParseNotificationTool(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(t, callTool(t, srv, "parse_notification", map[string]interface{}{
		"title": "삼성카드",
		"text":  "스타벅스 5,000원 결제",
	}))
	if !strings.Contains(text, "5000") || !strings.Contains(text, "expense") {
		t.Fatalf("parse result = %s", text)
	}

	text = resultText(t, callTool(t, srv, "parse_notification", map[string]interface{}{
		"title": "카카오톡",
		"text":  "새 메시지가 도착했습니다",
	}))
	if text != "not a financial notification" {
		t.Fatalf("non-financial result = %s", text)
	}
}
