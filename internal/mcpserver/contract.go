package mcpserver

// ClassificationProtocolURI is the resource URI of ClassificationProtocol.
const ClassificationProtocolURI = "threadbox://classification-protocol"

// ClassificationProtocol describes how LLM clients should sort inbox notes
// into threads.
const ClassificationProtocol = `# Threadbox Classification Protocol

Threadbox keeps notes in topical threads. New messages land in the **inbox**
(no thread). Sorting them is a two-step process: **suggest**, then **approve**.
A suggestion never moves a note by itself.

## Step 1: suggest

1. Call ` + "`list_inbox`" + ` to get unassigned notes and any existing suggestion.
2. Call ` + "`list_threads`" + ` to see the candidate threads, their descriptions
   and keywords. Use ` + "`read_thread`" + ` when you need the notes already in a thread.
3. For each note, pick the single best thread, or none when nothing fits.
4. Record the choice with ` + "`suggest_thread`" + `:
   - ` + "`thread_id`" + `: an id returned by ` + "`list_threads`" + `
   - ` + "`confidence`" + `: your probability that the thread is right, in [0, 1]
   - ` + "`reasoning`" + `: one short sentence

Suggesting again replaces the previous suggestion. Do not invent thread ids.

## Step 2: approve

- ` + "`approve_suggestion`" + ` moves the note into its suggested thread and updates
  thread note counts in the same step.
- Approve only when asked to, or when confidence is high and the user has
  allowed automatic approval.
- ` + "`move_note`" + ` moves a note to any thread directly when the user says so.

## Rules

1. A note belongs to at most one thread.
2. If a suggested thread was deleted the suggestion is stale: approving it fails
   with "not found". Suggest again.
3. Approving a note without a suggestion fails; suggest first.
4. Create a thread with ` + "`create_thread`" + ` only when the user asks for one.
   Keywords are lowercase and deduplicated by the server.
5. ` + "`generate_summary`" + ` renders a Markdown digest of a thread. It needs at least one note.

## Example

` + "```" + `text
list_inbox          -> note-9 "Sprint retrospective" (no suggestion)
list_threads        -> thread-2 "Meeting Notes" keywords: meetings, standup, retrospective
suggest_thread      note_id=note-9 thread_id=thread-2 confidence=0.9
                    reasoning="Retrospective notes from the team meeting"
approve_suggestion  note_id=note-9   -> note-9 now in thread-2
` + "```" + `
`
