package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/deemkeen/tootsite/domain"
	"github.com/deemkeen/tootsite/util"
)

//go:embed templates/*.html
var templateFiles embed.FS

const excerptLength = 80

// Renderer turns a post and its author into a complete HTML page
type Renderer interface {
	Render(post *domain.Post, actor *domain.Actor) (string, error)
}

type PageData struct {
	Post PostView
	User UserView
	Site SiteView
}

type IndexPageData struct {
	User     UserView
	Site     SiteView
	Posts    []PostView
	FeedFile string
	FeedType string
}

type SiteView struct {
	Title string
}

type UserView struct {
	Name    string
	URL     string
	Handle  string
	Summary template.HTML
}

type PostView struct {
	URL            string
	Path           string
	Content        template.HTML // exported markup, passed through
	Summary        string
	Excerpt        string
	Published      string
	PublishedHuman string
	InReplyTo      string
	Attachments    []AttachmentView
}

type AttachmentView struct {
	FileName  string
	Title     string
	MediaType string
}

func (a AttachmentView) IsImage() bool { return strings.HasPrefix(a.MediaType, "image/") }
func (a AttachmentView) IsVideo() bool { return strings.HasPrefix(a.MediaType, "video/") }
func (a AttachmentView) IsAudio() bool { return strings.HasPrefix(a.MediaType, "audio/") }

// TemplateRenderer renders pages with the embedded html/template set
type TemplateRenderer struct {
	tmpl *template.Template
	site SiteView
}

func NewTemplateRenderer(conf util.SiteConf) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{tmpl: tmpl, site: SiteView{Title: conf.Title}}, nil
}

func (r *TemplateRenderer) Render(post *domain.Post, actor *domain.Actor) (string, error) {
	data := PageData{
		Post: NewPostView(post),
		User: NewUserView(actor),
		Site: r.site,
	}
	return r.execute("toot.html", data)
}

// RenderIndex renders the optional landing page listing every given post
func (r *TemplateRenderer) RenderIndex(actor *domain.Actor, posts []*domain.Post, feedFile string) (string, error) {
	data := IndexPageData{
		User:     NewUserView(actor),
		Site:     r.site,
		Posts:    make([]PostView, 0, len(posts)),
		FeedFile: feedFile,
	}
	switch feedFile {
	case "":
	case AtomFile:
		data.FeedType = "application/atom+xml"
	default:
		data.FeedType = "application/rss+xml"
	}
	for _, p := range posts {
		data.Posts = append(data.Posts, NewPostView(p))
	}
	return r.execute("index.html", data)
}

func (r *TemplateRenderer) execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrRender, name, err)
	}
	return buf.String(), nil
}

func NewUserView(actor *domain.Actor) UserView {
	return UserView{
		Name:    actor.Name,
		URL:     actor.URL,
		Handle:  actor.ShortHandle(),
		Summary: template.HTML(actor.Summary),
	}
}

func NewPostView(post *domain.Post) PostView {
	view := PostView{
		URL:            post.URL,
		Path:           post.OutputPath(),
		Content:        template.HTML(post.Content),
		Summary:        post.Summary,
		Excerpt:        Excerpt(post.Content, excerptLength),
		Published:      post.Published,
		PublishedHuman: formatPublished(post.Published),
		InReplyTo:      post.InReplyTo,
		Attachments:    make([]AttachmentView, 0, len(post.Attachments)),
	}
	for _, a := range post.Attachments {
		mediaType := a.MediaType
		if mediaType == "" {
			mediaType = mime.TypeByExtension(path.Ext(a.FileName))
		}
		view.Attachments = append(view.Attachments, AttachmentView{
			FileName:  a.FileName,
			Title:     a.Title,
			MediaType: mediaType,
		})
	}
	return view
}

// Excerpt returns the visible text of an HTML fragment, whitespace collapsed
// and cut to at most max runes.
func Excerpt(fragment string, max int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p").AppendHtml(" ")

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func formatPublished(published string) string {
	t := parsePublished(published)
	if t.IsZero() {
		return published
	}
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}
