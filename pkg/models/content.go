package models

import (
	"encoding/json"
	"strings"

	"github.com/SheaGuev/collabsync/pkg/oplog"
)

// Content is the parsed form of a node's Data field. At most one of the two
// shapes is stored at a time: an op-log, or a tagged markdown payload
// produced by import. Loaders must detect the shape by parsing, never assume.
type Content struct {
	Log      oplog.Delta
	Markdown string
	// IsMarkdown reports that the markdown shape was stored. When false the
	// op-log shape (possibly the plain-text fallback) is in effect.
	IsMarkdown bool
}

// markdownPayload is the tagged shape written by markdown import:
// {"markdown": true, "content": "..."}.
type markdownPayload struct {
	Markdown bool   `json:"markdown"`
	Content  string `json:"content"`
}

// ParseContent branches on the stored shape of data. Content that parses as
// neither a valid op-log nor a tagged markdown payload is treated as plain
// text rather than failing the load.
func ParseContent(data string) Content {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return Content{}
	}

	var md markdownPayload
	if err := json.Unmarshal([]byte(trimmed), &md); err == nil && md.Markdown {
		return Content{Markdown: md.Content, IsMarkdown: true}
	}

	if d, err := oplog.Unmarshal([]byte(trimmed)); err == nil {
		return Content{Log: d}
	}

	return Content{Log: oplog.FromPlainText(data)}
}

// Serialize renders the content back into the stored Data representation.
func (c Content) Serialize() (string, error) {
	if c.IsMarkdown {
		out, err := json.Marshal(markdownPayload{Markdown: true, Content: c.Markdown})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	out, err := c.Log.Marshal()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
