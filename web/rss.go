package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/deemkeen/tootsite/domain"
	"github.com/gorilla/feeds"
)

const (
	RSSFile  = "feed.xml"
	AtomFile = "atom.xml"
)

// FeedFile maps a configured feed format to its file name
func FeedFile(format string) string {
	switch format {
	case "rss":
		return RSSFile
	case "atom":
		return AtomFile
	default:
		return ""
	}
}

// BuildFeed renders posts as an RSS or Atom document. Links point at the
// generated pages when baseURL is set, at the original posts otherwise.
// Timestamps come from the posts only so rebuilding gives identical output.
func BuildFeed(actor *domain.Actor, posts []*domain.Post, baseURL, format string) (string, error) {
	link := actor.URL
	if baseURL != "" {
		link = strings.TrimSuffix(baseURL, "/") + "/"
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s (%s)", actor.Name, actor.ShortHandle()),
		Link:        &feeds.Link{Href: link},
		Description: Excerpt(actor.Summary, 200),
		Author:      &feeds.Author{Name: actor.Name},
	}

	items := make([]*feeds.Item, 0, len(posts))
	for _, p := range posts {
		created := parsePublished(p.Published)
		if created.After(feed.Updated) {
			feed.Updated = created
		}

		href := p.URL
		if baseURL != "" {
			href = strings.TrimSuffix(baseURL, "/") + "/" + p.OutputPath() + "/"
		}
		items = append(items, &feeds.Item{
			Id:          p.URL,
			Title:       Excerpt(p.Content, excerptLength),
			Link:        &feeds.Link{Href: href},
			Description: p.Summary,
			Content:     p.Content,
			Author:      &feeds.Author{Name: actor.Name},
			Created:     created,
		})
	}
	feed.Items = items
	feed.Created = feed.Updated

	var (
		out string
		err error
	)
	switch format {
	case "atom":
		out, err = feed.ToAtom()
	case "rss":
		out, err = feed.ToRss()
	default:
		return "", fmt.Errorf("%w: unknown feed format %q", domain.ErrRender, format)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s feed: %w", domain.ErrRender, format, err)
	}
	return out, nil
}

func parsePublished(published string) time.Time {
	t, err := time.Parse(time.RFC3339, published)
	if err != nil {
		return time.Time{}
	}
	return t
}
