package mcpserver

// NoteFormatContract describes the canonical note encoding that LLM
// consumers should expect when reading raw note files, and the rules that
// apply when creating or updating notes through the tools.
const NoteFormatContract = `# Othala Note Format Contract

Every note is stored as one file at ` + "`" + `notes/<id>.md` + "`" + ` inside the vault.
The id is a UUID assigned at creation and never changes.

## Structure

` + "```" + `markdown
---
title: Human-readable title
category: Uncategorized
tags: ["tag-one","tag-two"]
createdAt: 2025-01-15T09:30:00Z
updatedAt: 2025-01-20T14:05:00Z
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The ` + "`" + `---` + "`" + ` header block comes first.** Fields are simple
   ` + "`" + `key: value` + "`" + ` lines; ` + "`" + `tags` + "`" + ` is a JSON string array.
2. **Missing or corrupt header fields degrade gracefully.** A file without a
   header is still a valid note; absent fields get defaults
   (` + "`" + `Untitled Note` + "`" + `, ` + "`" + `Uncategorized` + "`" + `, empty tags).
3. **Do not edit note files directly through other tools.** Use create_note
   and update_note so versioning and search indexing stay consistent. The
   rendered HTML ` + "`" + `content` + "`" + ` field is always derived from the
   Markdown; never supply it yourself.
4. **Every saved change is versioned.** Rapid edits coalesce into one
   version after a quiet period; use note_history, diff_versions, and
   restore_version to work with past states.
5. **Encoding** is UTF-8 with a trailing newline.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a
  ` + "`" + `markdownImage` + "`" + ` field ready to paste into a note body.
- Assets live in the vault's flat ` + "`" + `assets/` + "`" + ` directory and are
  referenced by absolute path: ` + "`" + `![description](/assets/filename.png)` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `markdown
---
title: Weekly standup
category: Work
tags: ["meeting-notes","project-x"]
createdAt: 2025-01-20T09:00:00Z
updatedAt: 2025-01-20T09:45:00Z
---

# Weekly standup

Attendees: Alice, Bob.

![Whiteboard photo](/assets/standup-2025-01-20.jpg)
` + "```" + `
`
