package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Attachment is one media file referenced by a post.
// ArchivePath and FileName are both derived from URL.
type Attachment struct {
	URL         string
	Title       string // empty if the archive has no description
	MediaType   string
	ArchivePath string
	FileName    string
}

type Post struct {
	ID          string
	URL         string
	Content     string // HTML fragment as exported, never re-escaped
	Summary     string // content warning
	Sensitive   bool
	Published   string // ISO-8601, kept verbatim
	InReplyTo   string
	Public      bool
	Attachments []Attachment
	Author      *Actor
}

// OutputPath is the URL path of the post without leading or trailing slashes.
// It is a pure function of URL.
func (p *Post) OutputPath() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

// OutputHTMLFile is the slash separated location of the rendered page
func (p *Post) OutputHTMLFile() string {
	return p.OutputPath() + "/index.html"
}

func (p *Post) ToString() string {
	return fmt.Sprintf("<%s>: %s", p.URL, p.Content)
}
