package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/deemkeen/tootsite/domain"
)

// PublicURI marks an activity as addressed to everyone
const PublicURI = "https://www.w3.org/ns/activitystreams#Public"

// CreateType is the only activity type turned into a post
const CreateType = "Create"

// ParseOutbox reads outbox.json and builds a post from every Create activity.
// A single malformed activity fails the whole outbox.
func ParseOutbox(r io.Reader, actor *domain.Actor) (*domain.Outbox, error) {
	var doc map[string]interface{}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse outbox JSON: %w", domain.ErrMalformedPost, err)
	}

	items, ok := doc["orderedItems"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: outbox has no orderedItems list", domain.ErrMalformedPost)
	}

	posts := make([]*domain.Post, 0, len(items))
	for i, item := range items {
		activity, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: outbox item %d is not an object", domain.ErrMalformedPost, i)
		}
		if activityType, _ := activity["type"].(string); activityType != CreateType {
			continue
		}
		post, err := ParsePost(activity, actor)
		if err != nil {
			return nil, fmt.Errorf("outbox item %d: %w", i, err)
		}
		posts = append(posts, post)
	}
	return domain.NewOutbox(posts), nil
}

// ParsePost builds a post from a Create activity and its embedded object
func ParsePost(activity map[string]interface{}, actor *domain.Actor) (*domain.Post, error) {
	id, err := requireString(activity, "id")
	if err != nil {
		return nil, postError("", err)
	}
	obj, ok := activity["object"].(map[string]interface{})
	if !ok {
		return nil, postError(id, fmt.Errorf("object is missing or not an object"))
	}

	post := &domain.Post{ID: id, Author: actor}
	if post.URL, err = requireString(obj, "url"); err != nil {
		return nil, postError(id, err)
	}
	if u, err := url.Parse(post.URL); err != nil || !u.IsAbs() {
		return nil, postError(id, fmt.Errorf("url %q is not absolute", post.URL))
	}
	if post.Content, err = requireString(obj, "content"); err != nil {
		return nil, postError(id, err)
	}
	if post.Published, err = requireString(obj, "published"); err != nil {
		return nil, postError(id, err)
	}
	to, err := requireStrings(obj, "to")
	if err != nil {
		return nil, postError(id, err)
	}
	post.Public = slices.Contains(to, PublicURI)

	if post.InReplyTo, err = optionalString(obj, "inReplyTo"); err != nil {
		return nil, postError(id, err)
	}
	if post.Summary, err = optionalString(obj, "summary"); err != nil {
		return nil, postError(id, err)
	}
	if sensitive, ok := obj["sensitive"].(bool); ok {
		post.Sensitive = sensitive
	}

	switch raw := obj["attachment"].(type) {
	case nil:
	case []interface{}:
		post.Attachments = make([]domain.Attachment, 0, len(raw))
		for i, a := range raw {
			rec, ok := a.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: post %s attachment %d is not an object", domain.ErrMalformedAttachment, id, i)
			}
			att, err := ParseAttachment(rec, post)
			if err != nil {
				return nil, err
			}
			post.Attachments = append(post.Attachments, att)
		}
	default:
		return nil, postError(id, fmt.Errorf("attachment is not a list"))
	}

	return post, nil
}

// ParseAttachment derives the archive path and the output file name from the
// attachment url. The url is split on "/": the first two parts are dropped to
// get the archive path, the last part is the file name.
func ParseAttachment(rec map[string]interface{}, owner *domain.Post) (domain.Attachment, error) {
	fail := func(format string, args ...interface{}) (domain.Attachment, error) {
		return domain.Attachment{}, fmt.Errorf("%w: post %s: %s", domain.ErrMalformedAttachment, owner.ID, fmt.Sprintf(format, args...))
	}

	raw, err := requireString(rec, "url")
	if err != nil {
		return fail("%v", err)
	}
	parts := strings.Split(raw, "/")
	if len(parts) < 3 {
		return fail("url %q has fewer than two path segments", raw)
	}
	name := parts[len(parts)-1]
	if name == "" || name == "." || name == ".." {
		return fail("url %q has no usable file name", raw)
	}

	att := domain.Attachment{
		URL:         raw,
		ArchivePath: strings.Join(parts[2:], "/"),
		FileName:    name,
	}
	if att.Title, err = optionalString(rec, "name"); err != nil {
		return fail("%v", err)
	}
	if att.MediaType, err = optionalString(rec, "mediaType"); err != nil {
		return fail("%v", err)
	}
	return att, nil
}

func postError(id string, err error) error {
	if id == "" {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPost, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrMalformedPost, id, err)
}

func requireString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string", key)
	}
	return s, nil
}

// optionalString accepts an absent or null field as ""
func optionalString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string", key)
	}
	return s, nil
}

func requireStrings(m map[string]interface{}, key string) ([]string, error) {
	list, ok := m[key].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%q is missing or not a list", key)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%q contains a non-string entry", key)
		}
		out = append(out, s)
	}
	return out, nil
}
