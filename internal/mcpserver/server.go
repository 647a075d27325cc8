// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes ledger tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/parser"
	"github.com/thkim0515/gagyebu/internal/rules"
	"github.com/thkim0515/gagyebu/internal/store"
)

// Server wraps the MCP server with ledger tools.
type Server struct {
	mcp    *server.MCPServer
	ledger store.Ledger
	parser *parser.Parser
	rules  *rules.Engine
}

// New creates a new MCP server with all ledger tools registered.
func New(ledger store.Ledger, p *parser.Parser, re *rules.Engine) *Server {
	s := &Server{ledger: ledger, parser: p, rules: re}

	s.mcp = server.NewMCPServer(
		"Gagyebu",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List all ledger chapters (monthly groupings like 2025년 12월)."),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List ledger records, optionally filtered by date or chapter."),
		mcp.WithString("date", mcp.Description("Optional calendar day filter (YYYY-MM-DD)")),
		mcp.WithString("chapter_id", mcp.Description("Optional chapter id filter")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("add_record",
		mcp.WithDescription("Add an income or expense record. The chapter for the record's "+
			"month is created automatically if it does not exist."),
		mcp.WithString("title", mcp.Required(), mcp.Description("What the money was for (e.g. 스타벅스)")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount in KRW, positive integer")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Either income or expense")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Calendar day (YYYY-MM-DD)")),
		mcp.WithString("category", mcp.Description("Optional category; classified from the title when empty")),
	), s.addRecord)

	s.mcp.AddTool(mcp.NewTool("parse_notification",
		mcp.WithDescription("Parse a bank or card notification into a structured transaction "+
			"without saving it. Returns the parsed fields, or reports that the text is not financial."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Notification title (usually the app or bank name)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Notification body text")),
	), s.parseNotification)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chapters, err := s.ledger.Chapters()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(chapters, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		records []models.Record
		err     error
	)
	if date := req.GetString("date", ""); date != "" {
		records, err = s.ledger.RecordsByDate(date)
	} else if chapterID := req.GetString("chapter_id", ""); chapterID != "" {
		records, err = s.ledger.RecordsByChapter(chapterID)
	} else {
		records, err = s.ledger.Records()
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	amount, err := req.RequireFloat("amount")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be positive"), nil
	}
	txType := models.TxType(req.GetString("type", ""))
	if !txType.Valid() {
		return mcp.NewToolResultError("type must be income or expense"), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return mcp.NewToolResultError("date must be YYYY-MM-DD"), nil
	}

	category := req.GetString("category", "")
	if category == "" {
		category = s.rules.ClassifyCategory(title)
	}

	chapterID, err := s.chapterFor(day)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.ledger.AddRecord(models.Record{
		ChapterID: chapterID,
		Title:     title,
		Amount:    int64(amount),
		Type:      txType,
		Category:  category,
		Date:      date,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created record %s in chapter %s", id, chapterID)), nil
}

func (s *Server) parseNotification(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tx := s.parser.Parse(title + " " + text)
	if tx == nil {
		return mcp.NewToolResultText("not a financial notification"), nil
	}
	out, _ := json.MarshalIndent(tx, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// chapterFor finds the chapter for day's month, creating it when absent.
func (s *Server) chapterFor(day time.Time) (string, error) {
	title := parser.ChapterTitle(day)
	chapters, err := s.ledger.Chapters()
	if err != nil {
		return "", err
	}
	for _, c := range chapters {
		if c.Title == title {
			return c.ChapterID, nil
		}
	}
	return s.ledger.AddChapter(models.Chapter{Title: title, Order: len(chapters)})
}
