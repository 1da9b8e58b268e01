package site

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/tootsite/activitypub"
	"github.com/deemkeen/tootsite/archive"
	"github.com/deemkeen/tootsite/domain"
	"github.com/deemkeen/tootsite/notify"
	"github.com/deemkeen/tootsite/util"
	"github.com/deemkeen/tootsite/web"
)

const (
	ActorEntry  = "actor.json"
	OutboxEntry = "outbox.json"
	IndexFile   = "index.html"
)

// IndexRenderer is implemented by renderers that can also draw the landing page
type IndexRenderer interface {
	RenderIndex(actor *domain.Actor, posts []*domain.Post, feedFile string) (string, error)
}

// Report summarises one run
type Report struct {
	Posts        int // Create activities in the outbox
	Public       int
	Written      int // pages
	Attachments  int
	Notified     int
	NotifyFailed int
	Collisions   int
}

// Builder turns an archive into a static site. A nil notifier disables notifications.
type Builder struct {
	renderer web.Renderer
	notifier notify.Notifier
	site     util.SiteConf
	logger   *log.Logger
}

func NewBuilder(renderer web.Renderer, notifier notify.Notifier, site util.SiteConf, logger *log.Logger) *Builder {
	return &Builder{
		renderer: renderer,
		notifier: notifier,
		site:     site,
		logger:   logger,
	}
}

// page is a public post together with its checked destinations
type page struct {
	post        *domain.Post
	dir         string
	html        string
	attachments []string
}

// Build reads the archive at archivePath and writes one page per public post
// below outputDir. Everything is parsed and checked before the first write, so
// a malformed archive leaves outputDir untouched.
func (b *Builder) Build(ctx context.Context, archivePath, outputDir string) (*Report, error) {
	ar, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer ar.Close()
	b.logger.Info("Build: opened archive", "path", archivePath, "format", ar.Format(), "entries", len(ar.Entries()))

	actor, err := loadActor(ar)
	if err != nil {
		return nil, err
	}
	outbox, err := loadOutbox(ar, actor)
	if err != nil {
		return nil, err
	}
	b.logger.Info("Build: loaded outbox", "actor", actor.ShortHandle(), "posts", outbox.Len())

	pages, err := plan(ar, outbox, outputDir)
	if err != nil {
		return nil, err
	}

	report := &Report{Posts: outbox.Len(), Public: len(pages)}
	owners := make(map[string]string, len(pages))
	public := make([]*domain.Post, 0, len(pages))

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("build interrupted: %w", err)
		}

		if owner, ok := owners[p.dir]; ok && owner != p.post.URL {
			report.Collisions++
			b.logger.Warn("Build: output path collision, overwriting", "path", p.html, "previous", owner, "url", p.post.URL)
		}
		owners[p.dir] = p.post.URL

		if err := b.writePage(ar, p, actor, report); err != nil {
			return report, err
		}
		public = append(public, p.post)

		if b.notifier != nil {
			if err := b.notifier.Notify(ctx, p.post.URL); err != nil {
				report.NotifyFailed++
				b.logger.Warn("Build: notification failed", "url", p.post.URL, "err", err)
			} else {
				report.Notified++
			}
		}
	}

	if err := b.writeExtras(actor, public, outputDir, owners); err != nil {
		return report, err
	}

	b.logger.Info("Build: done",
		"posts", report.Posts,
		"public", report.Public,
		"written", report.Written,
		"attachments", report.Attachments)
	return report, nil
}

func loadActor(ar *archive.Reader) (*domain.Actor, error) {
	rc, err := ar.Extract(ActorEntry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return activitypub.ParseActor(rc)
}

func loadOutbox(ar *archive.Reader, actor *domain.Actor) (*domain.Outbox, error) {
	rc, err := ar.Extract(OutboxEntry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return activitypub.ParseOutbox(rc, actor)
}

// plan resolves every destination of every public post and checks that each
// stays inside outputDir and each attachment exists in the archive
func plan(ar *archive.Reader, outbox *domain.Outbox, outputDir string) ([]page, error) {
	var pages []page
	for _, post := range outbox.All() {
		if !post.Public {
			continue
		}

		p := page{
			post: post,
			dir:  filepath.Join(outputDir, filepath.FromSlash(post.OutputPath())),
			html: filepath.Join(outputDir, filepath.FromSlash(post.OutputHTMLFile())),
		}
		if !util.IsPathWithinDir(p.html, outputDir) {
			return nil, fmt.Errorf("%w: %s: page %s escapes %s", domain.ErrOutputWrite, post.URL, p.html, outputDir)
		}

		for _, att := range post.Attachments {
			if !ar.Has(att.ArchivePath) {
				return nil, fmt.Errorf("%w: %s (attachment of %s)", domain.ErrArchiveEntryMissing, att.ArchivePath, post.URL)
			}
			dest := filepath.Join(p.dir, att.FileName)
			if !util.IsPathWithinDir(dest, p.dir) || strings.ContainsRune(att.FileName, os.PathSeparator) {
				return nil, fmt.Errorf("%w: %s: attachment %s escapes %s", domain.ErrOutputWrite, post.URL, att.FileName, p.dir)
			}
			p.attachments = append(p.attachments, dest)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (b *Builder) writePage(ar *archive.Reader, p page, actor *domain.Actor, report *Report) error {
	html, err := b.renderer.Render(p.post, actor)
	if err != nil {
		return fmt.Errorf("render %s: %w", p.post.URL, err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutputWrite, err)
	}
	if err := writeFile(p.html, strings.NewReader(html)); err != nil {
		return err
	}
	report.Written++
	b.logger.Debug("Build: wrote page", "url", p.post.URL, "path", p.html)

	for i, att := range p.post.Attachments {
		if err := copyEntry(ar, att.ArchivePath, p.attachments[i]); err != nil {
			return err
		}
		report.Attachments++
		b.logger.Debug("Build: copied attachment", "entry", att.ArchivePath, "path", p.attachments[i])
	}
	return nil
}

// writeExtras writes the landing page and the feed when they are enabled
func (b *Builder) writeExtras(actor *domain.Actor, posts []*domain.Post, outputDir string, owners map[string]string) error {
	feedFile := web.FeedFile(b.site.Feed)
	if feedFile != "" {
		feed, err := web.BuildFeed(actor, posts, b.site.BaseURL, b.site.Feed)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrOutputWrite, err)
		}
		if err := writeFile(filepath.Join(outputDir, feedFile), strings.NewReader(feed)); err != nil {
			return err
		}
		b.logger.Info("Build: wrote feed", "format", b.site.Feed, "items", len(posts))
	}

	if !b.site.Index {
		return nil
	}
	ir, ok := b.renderer.(IndexRenderer)
	if !ok {
		b.logger.Warn("Build: renderer cannot draw an index page, skipping")
		return nil
	}
	if owner, taken := owners[filepath.Clean(outputDir)]; taken {
		b.logger.Warn("Build: index page replaces a post", "url", owner)
	}

	html, err := ir.RenderIndex(actor, posts, feedFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutputWrite, err)
	}
	if err := writeFile(filepath.Join(outputDir, IndexFile), strings.NewReader(html)); err != nil {
		return err
	}
	b.logger.Info("Build: wrote index page", "posts", len(posts))
	return nil
}

// copyEntry streams an archive entry to dest without transforming it
func copyEntry(ar *archive.Reader, name, dest string) error {
	rc, err := ar.Extract(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFile(dest, rc)
}

// writeFile replaces dest with the contents of r
func writeFile(dest string, r io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutputWrite, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, dest, err)
	}
	return nil
}
