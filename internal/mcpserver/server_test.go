package mcpserver

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/threadbox/internal/noteservice"
	"github.com/starford/threadbox/internal/search"
	"github.com/starford/threadbox/internal/store"
	"github.com/starford/threadbox/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	idx, err := search.NewMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	var st *store.Store
	st = testutil.SeededStore(t, store.WithObserver(func(e store.Event) { idx.Apply(e, st) }))
	if err := idx.Rebuild(st.Notes()); err != nil {
		t.Fatal(err)
	}
	return New(noteservice.New(st, noteservice.WithIndex(idx)))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_threads":                srv.listThreads,
		"list_inbox":                  srv.listInbox,
		"read_thread":                 srv.readThread,
		"create_thread":               srv.createThread,
		"suggest_thread":              srv.suggestThread,
		"move_note":                   srv.moveNote,
		"approve_suggestion":          srv.approveSuggestion,
		"generate_summary":            srv.generateSummary,
		"search_notes":                srv.searchNotes,
		"import_message":              srv.importMessage,
		"get_classification_protocol": srv.getClassificationProtocol,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListThreadsAndInbox(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "list_threads", nil))
	for _, title := range []string{"Product Ideas", "Meeting Notes", "Research & Links", "Quick Thoughts"} {
		if !strings.Contains(text, title) {
			t.Errorf("list_threads missing %q", title)
		}
	}

	text = resultText(callTool(t, srv, "list_inbox", nil))
	for _, id := range []string{"note-9", "note-10", "note-11"} {
		if !strings.Contains(text, `"`+id+`"`) {
			t.Errorf("list_inbox missing %s", id)
		}
	}
}

func TestReadThread(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "read_thread", map[string]interface{}{"thread_id": "thread-1"})
	if r.IsError {
		t.Fatalf("read_thread error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "gen-1") {
		t.Error("read_thread should include summaries")
	}

	r = callTool(t, srv, "read_thread", map[string]interface{}{"thread_id": "thread-x"})
	if !r.IsError {
		t.Error("expected error for missing thread")
	}
	r = callTool(t, srv, "read_thread", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestCreateThread(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_thread", map[string]interface{}{
		"title":    "Travel",
		"keywords": " Flights, hotels ,flights,",
		"color":    "#22C55E",
	})
	if r.IsError {
		t.Fatalf("create_thread error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"flights"`) || !strings.Contains(text, `"hotels"`) {
		t.Errorf("keywords not normalized: %s", text)
	}
	if strings.Count(text, `"flights"`) != 1 {
		t.Errorf("keywords not deduplicated: %s", text)
	}
}

func TestCreateThread_RejectsBadColor(t *testing.T) {
	srv := testServer(t)
	before := len(srv.svc.Threads())

	r := callTool(t, srv, "create_thread", map[string]interface{}{"title": "Travel", "color": "blue"})
	if !r.IsError {
		t.Fatalf("expected error for color blue, got %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "#RRGGBB") {
		t.Errorf("error = %s", resultText(r))
	}
	if got := len(srv.svc.Threads()); got != before {
		t.Errorf("threads = %d, want %d", got, before)
	}
}

func TestSuggestThenApprove(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "approve_suggestion", map[string]interface{}{"note_id": "note-11"})
	if !r.IsError {
		t.Fatal("approving without a suggestion should fail")
	}

	r = callTool(t, srv, "suggest_thread", map[string]interface{}{
		"note_id": "note-11", "thread_id": "thread-4", "confidence": 1.5,
	})
	if !r.IsError {
		t.Error("expected error for confidence out of range")
	}

	r = callTool(t, srv, "suggest_thread", map[string]interface{}{
		"note_id": "note-11", "thread_id": "thread-4", "confidence": 0.8, "reasoning": "short idea",
	})
	if r.IsError {
		t.Fatalf("suggest_thread error: %s", resultText(r))
	}

	r = callTool(t, srv, "approve_suggestion", map[string]interface{}{"note_id": "note-11"})
	if got := resultText(r); got != "approved: note-11 -> thread-4" {
		t.Errorf("approve result = %q", got)
	}
	if err := srv.svc.Store().Check(); err != nil {
		t.Error(err)
	}
}

func TestMoveNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "move_note", map[string]interface{}{"note_id": "note-9", "thread_id": "thread-2"})
	if got := resultText(r); got != "moved: note-9 -> thread-2" {
		t.Errorf("move result = %q", got)
	}
	th, err := srv.svc.Thread("thread-2")
	if err != nil {
		t.Fatal(err)
	}
	if th.NoteCount != 3 {
		t.Errorf("note count = %d, want 3", th.NoteCount)
	}

	r = callTool(t, srv, "move_note", map[string]interface{}{"note_id": "note-9", "thread_id": "thread-x"})
	if !r.IsError {
		t.Error("expected error for unknown thread")
	}
}

func TestGenerateSummary(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "generate_summary", map[string]interface{}{"thread_id": "thread-2"})
	if r.IsError {
		t.Fatalf("generate_summary error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Meeting Notes") {
		t.Error("summary should mention the thread title")
	}
}

func TestSearchNotes(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "dark mode"})
	if !strings.Contains(resultText(r), "note-1") {
		t.Errorf("search result = %q", resultText(r))
	}
	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "zebracorn"})
	if resultText(r) != "no matches" {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestImportMessage_DataURI(t *testing.T) {
	srv := testServer(t)

	msg := "---\nfrom: ops@company.com\nsubject: Disk alert\nmessage_id: import-1\n---\nThe build disk is at 95%.\n"
	uri := "data:text/markdown;base64," + base64.StdEncoding.EncodeToString([]byte(msg))

	r := callTool(t, srv, "import_message", map[string]interface{}{"url": uri})
	if r.IsError {
		t.Fatalf("import_message error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Disk alert") {
		t.Errorf("import result = %q", resultText(r))
	}

	r = callTool(t, srv, "import_message", map[string]interface{}{"url": uri})
	if !r.IsError {
		t.Error("expected duplicate message error")
	}
}

func TestImportMessage_Rejected(t *testing.T) {
	srv := testServer(t)

	cases := map[string]map[string]interface{}{
		"scheme":   {"url": "file:///etc/passwd"},
		"loopback": {"url": "http://127.0.0.1/msg.md"},
		"metadata": {"url": "http://169.254.169.254/latest/meta-data"},
		"unknown":  {"url": "data:application/octet-stream;base64,aGVsbG8="},
		"raw":      {"url": "data:text/plain,hello"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "import_message", args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestMessageExt(t *testing.T) {
	tests := []struct {
		filename, url, detected, want string
	}{
		{"", "https://example.com/a.eml", "", ".eml"},
		{"note.MD", "https://example.com/download", ".eml", ".md"},
		{"", "https://example.com/download", ".eml", ".eml"},
		{"", "data:text/plain;base64,aGk=", ".md", ".md"},
		{"", "https://example.com/x.pdf", "", ""},
	}
	for _, tt := range tests {
		if got := messageExt(tt.filename, tt.url, tt.detected); got != tt.want {
			t.Errorf("messageExt(%q, %q, %q) = %q, want %q", tt.filename, tt.url, tt.detected, got, tt.want)
		}
	}
}

func TestClassificationProtocol(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "get_classification_protocol", nil))
	if !strings.Contains(text, "suggest_thread") || !strings.Contains(text, "approve_suggestion") {
		t.Error("protocol should describe both steps")
	}

	contents, err := srv.readClassificationProtocol(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ClassificationProtocolURI || tc.Text != ClassificationProtocol {
		t.Errorf("unexpected resource contents: %+v", contents[0])
	}
}
