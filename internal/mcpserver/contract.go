package mcpserver

// CatalogueFormat describes how a mirrored workspace becomes a catalogue entry.
const CatalogueFormat = `# wssync Catalogue Format

Every workspace directory under the target root contributes one entry to
` + "`" + `items.json` + "`" + `.

## Required files

| File | Field |
|---|---|
| ` + "`" + `title.txt` + "`" + ` | ` + "`" + `title` + "`" + ` (trimmed) |
| ` + "`" + `author.txt` + "`" + ` | ` + "`" + `author` + "`" + ` (trimmed) |
| ` + "`" + `description.txt` + "`" + ` | ` + "`" + `description` + "`" + ` (trimmed) |
| ` + "`" + `report.pdf` + "`" + ` | ` + "`" + `doc` + "`" + ` = ` + "`" + `<prefix>/<workspace>/report.pdf` + "`" + ` |
| ` + "`" + `logo.png` + "`" + ` | ` + "`" + `image` + "`" + ` = ` + "`" + `<prefix>/<workspace>/logo.png` + "`" + ` |

If any of the five is missing or unreadable the entry falls back to the
placeholder below, keeping its position-based ` + "`" + `id` + "`" + `:

` + "```" + `json
{
  "id": 3,
  "title": "Untitled Workspace",
  "author": "Unknown",
  "description": "",
  "doc": "doc.pdf",
  "image": "/img/default.png"
}
` + "```" + `

## Rules

1. Ids run 1..N in workspace listing order with no gaps.
2. The catalogue is rewritten only when a sync copies at least one file.
3. Text files must be UTF-8.
`
