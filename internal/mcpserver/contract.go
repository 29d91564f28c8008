package mcpserver

// NoteFormatContract describes the workspace layout and the Markdown mirror
// written for every stored note. Mirror files are output only: editing them
// does not change the stored note.
const NoteFormatContract = `# Research Note Mirror Format

Every note added with research_add is stored in the database and mirrored
as a Markdown file. The database is the source of truth; mirror files are
regenerated output and are never read back.

## Workspace layout

` + "```" + `text
{workspace}/
  research.db                     # notes + search index
  notes/                          # mirrors of notes without a session
    0001-tls-1-3.md
  {type}-{slug}[-N]/              # one directory per session
    notes/                        # mirrors of the session's notes
    artifacts/                    # files saved with research_save_artifact
    src/                          # spike sessions only
` + "```" + `

- ` + "`" + `{type}` + "`" + ` is deep-research, quick-lookup or spike.
- ` + "`" + `{slug}` + "`" + ` is the topic lowercased, with runs of characters outside
  a-z, 0-9 and "-" replaced by a single "-", trimmed, at most 50 characters.
  An empty slug becomes "untitled".
- ` + "`" + `-N` + "`" + ` (N >= 2) is appended when the name is taken. Suffixes only grow.
  A .session.json marker in each session records its unsuffixed name.
- Mirror file names are ` + "`" + `{id:04d}-{slug}.md` + "`" + `.

## Mirror file

` + "```" + `markdown
# {topic}

**Query:** {query}
**Confidence:** {low|medium|high}
**Date:** {created_at}
**Tags:** {tag,tag}

## Summary

{summary}

## Raw Findings

{raw_findings}

## Sources

- [{title}]({url}) (accessed {accessed})
` + "```" + `

- The Tags line, the Raw Findings section and the Sources section appear only
  when the note has them.
- Sources are given to research_add as a JSON array of objects with url,
  title and accessed. A missing title falls back to the url, then "Unknown".
  Text that is not such an array is listed as a single line.
- Tags must not contain commas.

## Rules

1. Notes are append-only: there is no edit or delete tool.
2. Pass the dir returned by research_create_session as session_dir so the
   mirror lands in that session's notes/ directory. A session_dir outside the
   workspace is stored but gets no mirror file.
3. research_search takes an FTS5 expression when full-text search is compiled
   in (words, "phrases", AND/OR/NOT, column:term). Malformed expressions are
   rejected with a query syntax error.
`
