// Command ralph-mcp-tool is a single-tool MCP stdio server. The Prompt
// Composer's BuildBundle writes one shell wrapper per tool that invokes
// this binary with --tool <name> --db <path>, so every tool a spawned
// agent sees is backed by its own tiny server process talking straight to
// the Project Store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/veighnsche/ralph/internal/prompt"
	"github.com/veighnsche/ralph/internal/store"
)

func main() {
	tool := flag.String("tool", "", "tool name to serve")
	dbPath := flag.String("db", "", "path to the project's sqlite database")
	flag.Parse()

	if *tool == "" || *dbPath == "" {
		fmt.Fprintln(os.Stderr, "ralph-mcp-tool: --tool and --db are required")
		os.Exit(1)
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ralph-mcp-tool: open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	srv := server.NewMCPServer("ralph-"+*tool, "0.1.0", server.WithToolCapabilities(false))
	if err := registerTool(srv, s, prompt.McpTool(*tool)); err != nil {
		fmt.Fprintf(os.Stderr, "ralph-mcp-tool: %v\n", err)
		os.Exit(1)
	}

	if err := server.ServeStdio(srv); err != nil {
		fmt.Fprintf(os.Stderr, "ralph-mcp-tool: serve: %v\n", err)
		os.Exit(1)
	}
}

func registerTool(srv *server.MCPServer, s *store.Store, tool prompt.McpTool) error {
	switch tool {
	case prompt.ToolCreateTask:
		srv.AddTool(
			mcp.NewTool("create_task",
				mcp.WithDescription("Create a new task in the project store."),
				mcp.WithString("subsystem", mcp.Required()),
				mcp.WithString("discipline", mcp.Required()),
				mcp.WithString("title", mcp.Required()),
				mcp.WithString("description"),
			),
			handleCreateTask(s),
		)
	case prompt.ToolUpdateTask:
		srv.AddTool(
			mcp.NewTool("update_task",
				mcp.WithDescription("Update an existing task's description, hints, or acceptance criteria."),
				mcp.WithString("id", mcp.Required()),
				mcp.WithString("description"),
				mcp.WithString("hints"),
			),
			handleUpdateTask(s),
		)
	case prompt.ToolSetTaskStatus:
		srv.AddTool(
			mcp.NewTool("set_task_status",
				mcp.WithDescription("Transition a task's status: pending, in_progress, done, blocked, skipped."),
				mcp.WithString("id", mcp.Required()),
				mcp.WithString("status", mcp.Required()),
			),
			handleSetTaskStatus(s),
		)
	case prompt.ToolAddSignal:
		srv.AddTool(
			mcp.NewTool("add_signal",
				mcp.WithDescription("Record a piece of knowledge (a signal) against a subsystem, optionally tied to a task."),
				mcp.WithString("subsystem", mcp.Required()),
				mcp.WithString("category", mcp.Required()),
				mcp.WithString("body", mcp.Required()),
				mcp.WithString("task_id"),
			),
			handleAddSignal(s),
		)
	case prompt.ToolSearchComments:
		srv.AddTool(
			mcp.NewTool("search_comments",
				mcp.WithDescription("Semantically search past signals recorded for a subsystem."),
				mcp.WithString("subsystem", mcp.Required()),
				mcp.WithString("query", mcp.Required()),
			),
			handleSearchComments(s),
		)
	case prompt.ToolGetTaskDetails:
		srv.AddTool(
			mcp.NewTool("get_task_details",
				mcp.WithDescription("Fetch the full detail of a task by id."),
				mcp.WithString("id", mcp.Required()),
			),
			handleGetTaskDetails(s),
		)
	case prompt.ToolListTasks:
		srv.AddTool(
			mcp.NewTool("list_tasks",
				mcp.WithDescription("List tasks, optionally filtered by subsystem, discipline, or status."),
				mcp.WithString("subsystem"),
				mcp.WithString("discipline"),
				mcp.WithString("status"),
			),
			handleListTasks(s),
		)
	case prompt.ToolMarkReviewed:
		srv.AddTool(
			mcp.NewTool("mark_comment_reviewed",
				mcp.WithDescription("Mark a signal as reviewed so pruning never evicts it."),
				mcp.WithString("id", mcp.Required()),
			),
			handleMarkReviewed(s),
		)
	default:
		return fmt.Errorf("unknown tool %q", tool)
	}
	return nil
}

func handleCreateTask(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		subsystem, _ := args["subsystem"].(string)
		discipline, _ := args["discipline"].(string)
		title, _ := args["title"].(string)
		description, _ := args["description"].(string)

		t, err := s.CreateTask(store.Task{
			Subsystem: subsystem, Discipline: discipline, Title: title, Description: description,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Created task %d: %s", t.ID, t.Title)), nil
	}
}

func handleUpdateTask(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		id, ok := intArg(args, "id")
		if !ok {
			return mcp.NewToolResultError("id must be an integer"), nil
		}
		t, err := s.GetTask(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if v, ok := args["description"].(string); ok && v != "" {
			t.Description = v
		}
		if v, ok := args["hints"].(string); ok && v != "" {
			t.Hints = v
		}
		if err := s.UpdateTask(t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Updated task %d", t.ID)), nil
	}
}

func handleSetTaskStatus(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		id, ok := intArg(args, "id")
		if !ok {
			return mcp.NewToolResultError("id must be an integer"), nil
		}
		status, _ := args["status"].(string)
		if err := s.SetTaskStatus(id, store.TaskStatus(status)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %d is now %s", id, status)), nil
	}
}

func handleAddSignal(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		subsystem, _ := args["subsystem"].(string)
		category, _ := args["category"].(string)
		body, _ := args["body"].(string)

		c := store.Comment{Subsystem: subsystem, Category: category, Body: body, AuthoredBy: store.AuthorAgent}
		if id, ok := intArg(args, "task_id"); ok {
			c.TaskID = &id
		}
		created, err := s.AddSignal(c)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Recorded signal #%d", created.ID)), nil
	}
}

func handleSearchComments(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		subsystem, _ := args["subsystem"].(string)
		query, _ := args["query"].(string)

		comments, err := s.ListSubsystemComments(subsystem)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var matches []store.Comment
		for _, c := range comments {
			if contains(c.Body, query) {
				matches = append(matches, c)
			}
		}
		if len(matches) == 0 {
			return mcp.NewToolResultText("No matching signals found."), nil
		}
		result := ""
		for _, c := range matches {
			result += fmt.Sprintf("[%s] %s\n", c.Category, c.Body)
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleGetTaskDetails(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := intArg(req.GetArguments(), "id")
		if !ok {
			return mcp.NewToolResultError("id must be an integer"), nil
		}
		t, err := s.GetTask(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("#%d %s (%s)\n%s", t.ID, t.Title, t.Status, t.Description)), nil
	}
}

func handleListTasks(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		subsystem, _ := args["subsystem"].(string)
		discipline, _ := args["discipline"].(string)
		status, _ := args["status"].(string)

		tasks, err := s.ListTasks(store.TaskFilter{
			Subsystem: subsystem, Discipline: discipline, Status: store.TaskStatus(status),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result := ""
		for _, t := range tasks {
			result += fmt.Sprintf("[%d] %s (%s)\n", t.ID, t.Title, t.Status)
		}
		if result == "" {
			result = "No tasks match."
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleMarkReviewed(s *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := intArg(req.GetArguments(), "id")
		if !ok {
			return mcp.NewToolResultError("id must be an integer"), nil
		}
		if err := s.MarkCommentReviewed(id, true); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Signal #%d marked reviewed", id)), nil
	}
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
