package activitypub

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/deemkeen/tootsite/domain"
)

var alice = &domain.Actor{Name: "Alice", URL: "https://ex.test/@alice", PreferredUsername: "alice"}

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("Bad test JSON: %v", err)
	}
	return m
}

const createActivity = `{
	"id": "https://ex.test/users/alice/statuses/123/activity",
	"type": "Create",
	"actor": "https://ex.test/users/alice",
	"object": {
		"id": "https://ex.test/users/alice/statuses/123",
		"type": "Note",
		"url": "https://ex.test/@alice/123",
		"content": "<p>hi</p>",
		"published": "2022-11-05T10:00:00Z",
		"inReplyTo": "https://other.test/@bob/1",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"cc": ["https://ex.test/users/alice/followers"],
		"attachment": [
			{"type": "Document", "mediaType": "image/png", "url": "/system/media_attachments/files/1/original/cat.png", "name": "a cat"},
			{"type": "Document", "mediaType": "video/mp4", "url": "/system/media_attachments/files/2/original/dog.mp4", "name": null}
		]
	}
}`

func TestParsePost(t *testing.T) {
	post, err := ParsePost(decode(t, createActivity), alice)
	if err != nil {
		t.Fatalf("ParsePost failed: %v", err)
	}

	if post.ID != "https://ex.test/users/alice/statuses/123/activity" {
		t.Errorf("Unexpected ID '%s'", post.ID)
	}
	if post.URL != "https://ex.test/@alice/123" {
		t.Errorf("Expected URL 'https://ex.test/@alice/123', got '%s'", post.URL)
	}
	if post.Content != "<p>hi</p>" {
		t.Errorf("Expected Content '<p>hi</p>', got '%s'", post.Content)
	}
	if post.Published != "2022-11-05T10:00:00Z" {
		t.Errorf("Expected Published to be kept verbatim, got '%s'", post.Published)
	}
	if post.InReplyTo != "https://other.test/@bob/1" {
		t.Errorf("Unexpected InReplyTo '%s'", post.InReplyTo)
	}
	if !post.Public {
		t.Error("Expected post to be public")
	}
	if post.Author != alice {
		t.Error("Expected post to reference its author")
	}
	if post.OutputPath() != "@alice/123" {
		t.Errorf("Expected OutputPath '@alice/123', got '%s'", post.OutputPath())
	}
	if post.OutputHTMLFile() != "@alice/123/index.html" {
		t.Errorf("Expected OutputHTMLFile '@alice/123/index.html', got '%s'", post.OutputHTMLFile())
	}

	if len(post.Attachments) != 2 {
		t.Fatalf("Expected 2 attachments, got %d", len(post.Attachments))
	}
	first := post.Attachments[0]
	if first.ArchivePath != "media_attachments/files/1/original/cat.png" {
		t.Errorf("Unexpected ArchivePath '%s'", first.ArchivePath)
	}
	if first.FileName != "cat.png" {
		t.Errorf("Expected FileName 'cat.png', got '%s'", first.FileName)
	}
	if first.Title != "a cat" {
		t.Errorf("Expected Title 'a cat', got '%s'", first.Title)
	}
	if first.MediaType != "image/png" {
		t.Errorf("Expected MediaType 'image/png', got '%s'", first.MediaType)
	}
	if post.Attachments[1].Title != "" {
		t.Errorf("Expected absent title, got '%s'", post.Attachments[1].Title)
	}
	if post.Attachments[1].FileName != "dog.mp4" {
		t.Errorf("Expected archive order to be kept, got '%s'", post.Attachments[1].FileName)
	}
}

func TestParsePostVisibility(t *testing.T) {
	tests := []struct {
		name   string
		to     string
		public bool
	}{
		{"public", `["https://www.w3.org/ns/activitystreams#Public"]`, true},
		{"public among others", `["https://ex.test/users/alice/followers","https://www.w3.org/ns/activitystreams#Public"]`, true},
		{"followers only", `["https://ex.test/followers"]`, false},
		{"direct", `[]`, false},
		{"no normalization", `["https://www.w3.org/ns/activitystreams#public"]`, false},
		{"as:Public shorthand", `["as:Public"]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"id":"1","type":"Create","object":{"url":"https://ex.test/@alice/1","content":"x","published":"2022-01-01T00:00:00Z","to":` + tt.to + `}}`
			post, err := ParsePost(decode(t, raw), alice)
			if err != nil {
				t.Fatalf("ParsePost failed: %v", err)
			}
			if post.Public != tt.public {
				t.Errorf("Expected Public %v, got %v", tt.public, post.Public)
			}
			if post.Attachments != nil {
				t.Errorf("Expected no attachments, got %v", post.Attachments)
			}
		})
	}
}

func TestParsePostMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing id", `{"type":"Create","object":{"url":"https://ex.test/@a/1","content":"x","published":"p","to":[]}}`},
		{"object is a string", `{"id":"1","type":"Create","object":"https://ex.test/@a/1"}`},
		{"missing url", `{"id":"1","object":{"content":"x","published":"p","to":[]}}`},
		{"relative url", `{"id":"1","object":{"url":"/@a/1","content":"x","published":"p","to":[]}}`},
		{"missing content", `{"id":"1","object":{"url":"https://ex.test/@a/1","published":"p","to":[]}}`},
		{"content not a string", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":1,"published":"p","to":[]}}`},
		{"missing published", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","to":[]}}`},
		{"missing to", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","published":"p"}}`},
		{"to not a list", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","published":"p","to":"https://www.w3.org/ns/activitystreams#Public"}}`},
		{"to with a number", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","published":"p","to":[1]}}`},
		{"inReplyTo not a string", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","published":"p","to":[],"inReplyTo":{}}}`},
		{"attachment not a list", `{"id":"1","object":{"url":"https://ex.test/@a/1","content":"x","published":"p","to":[],"attachment":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePost(decode(t, tt.json), alice)
			if !errors.Is(err, domain.ErrMalformedPost) {
				t.Errorf("Expected ErrMalformedPost, got %v", err)
			}
		})
	}
}

func TestParseAttachment(t *testing.T) {
	owner := &domain.Post{ID: "1"}
	tests := []struct {
		url         string
		archivePath string
		fileName    string
	}{
		{"/system/media_attachments/files/1/original/cat.png", "media_attachments/files/1/original/cat.png", "cat.png"},
		{"https://ex.test/media/cat.png", "ex.test/media/cat.png", "cat.png"},
		{"a/b/c", "c", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			att, err := ParseAttachment(map[string]interface{}{"url": tt.url}, owner)
			if err != nil {
				t.Fatalf("ParseAttachment failed: %v", err)
			}
			if att.ArchivePath != tt.archivePath {
				t.Errorf("Expected ArchivePath '%s', got '%s'", tt.archivePath, att.ArchivePath)
			}
			if att.FileName != tt.fileName {
				t.Errorf("Expected FileName '%s', got '%s'", tt.fileName, att.FileName)
			}
			if !strings.HasSuffix(tt.url, "/"+att.FileName) {
				t.Errorf("FileName '%s' is not the last segment of '%s'", att.FileName, tt.url)
			}
		})
	}
}

func TestParseAttachmentMalformed(t *testing.T) {
	owner := &domain.Post{ID: "1"}
	tests := []struct {
		name string
		rec  map[string]interface{}
	}{
		{"missing url", map[string]interface{}{"name": "x"}},
		{"url not a string", map[string]interface{}{"url": 3}},
		{"no slash", map[string]interface{}{"url": "cat.png"}},
		{"one slash", map[string]interface{}{"url": "/cat.png"}},
		{"trailing slash", map[string]interface{}{"url": "/system/media/"}},
		{"dot dot", map[string]interface{}{"url": "/system/media/.."}},
		{"name not a string", map[string]interface{}{"url": "/a/b/c.png", "name": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttachment(tt.rec, owner)
			if !errors.Is(err, domain.ErrMalformedAttachment) {
				t.Errorf("Expected ErrMalformedAttachment, got %v", err)
			}
		})
	}
}

func TestParseOutboxKeepsOnlyCreate(t *testing.T) {
	outbox := `{
		"type": "OrderedCollection",
		"orderedItems": [
			{"id":"a","type":"Create","object":{"url":"https://ex.test/@alice/1","content":"one","published":"p","to":["https://www.w3.org/ns/activitystreams#Public"]}},
			{"id":"b","type":"Announce","object":"https://other.test/@bob/9"},
			{"id":"c","type":"Create","object":{"url":"https://ex.test/@alice/2","content":"two","published":"p","to":[]}},
			{"id":"d","object":"x"},
			{"id":"e","type":"Like","object":"https://other.test/@bob/8"},
			{"id":"f","type":"Create","object":{"url":"https://ex.test/@alice/3","content":"three","published":"p","to":["https://www.w3.org/ns/activitystreams#Public"]}}
		]
	}`

	box, err := ParseOutbox(strings.NewReader(outbox), alice)
	if err != nil {
		t.Fatalf("ParseOutbox failed: %v", err)
	}
	if box.Len() != 3 {
		t.Fatalf("Expected 3 posts, got %d", box.Len())
	}

	want := []string{"a", "c", "f"}
	for i, p := range box.All() {
		if p.ID != want[i] {
			t.Errorf("Position %d: expected '%s', got '%s'", i, want[i], p.ID)
		}
	}
	if box.At(1).Content != "two" {
		t.Errorf("Expected At(1) to be 'two', got '%s'", box.At(1).Content)
	}

	public := box.Public()
	if len(public) != 2 || public[0].ID != "a" || public[1].ID != "f" {
		t.Errorf("Unexpected public posts: %v", public)
	}
}

func TestParseOutboxFailFast(t *testing.T) {
	outbox := `{"orderedItems": [
		{"id":"a","type":"Create","object":{"url":"https://ex.test/@alice/1","content":"one","published":"p","to":[]}},
		{"id":"b","type":"Create","object":{"url":"https://ex.test/@alice/2","published":"p","to":[]}}
	]}`

	box, err := ParseOutbox(strings.NewReader(outbox), alice)
	if !errors.Is(err, domain.ErrMalformedPost) {
		t.Fatalf("Expected ErrMalformedPost, got %v", err)
	}
	if box != nil {
		t.Error("Expected no outbox on failure")
	}
	if !strings.Contains(err.Error(), "item 1") {
		t.Errorf("Expected the failing item to be named, got %v", err)
	}
}

func TestParseOutboxAttachmentFailure(t *testing.T) {
	outbox := `{"orderedItems": [
		{"id":"a","type":"Create","object":{"url":"https://ex.test/@alice/1","content":"one","published":"p","to":[],"attachment":[{"url":"x.png"}]}}
	]}`

	_, err := ParseOutbox(strings.NewReader(outbox), alice)
	if !errors.Is(err, domain.ErrMalformedAttachment) {
		t.Errorf("Expected ErrMalformedAttachment, got %v", err)
	}
}

func TestParseOutboxMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{"orderedItems": [`},
		{"no orderedItems", `{"type":"OrderedCollection"}`},
		{"orderedItems not a list", `{"orderedItems":{}}`},
		{"item not an object", `{"orderedItems":["Create"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutbox(strings.NewReader(tt.json), alice)
			if !errors.Is(err, domain.ErrMalformedPost) {
				t.Errorf("Expected ErrMalformedPost, got %v", err)
			}
		})
	}
}

func TestParseOutboxEmpty(t *testing.T) {
	box, err := ParseOutbox(strings.NewReader(`{"orderedItems":[]}`), alice)
	if err != nil {
		t.Fatalf("ParseOutbox failed: %v", err)
	}
	if box.Len() != 0 {
		t.Errorf("Expected empty outbox, got %d", box.Len())
	}
}
