package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/tweetshelf/app/database"
)

const titleLimit = 80

// Generator renders a category as an RSS 2.0 channel so saved tweets can be
// followed from a feed reader.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

// Run expects posts newest first.
func (g *Generator) Run(category database.Category, posts []database.Post) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("%s - tweetshelf", category.Name), 4)
	g.writeElement(&buf, "link", g.baseURL+"/", 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Tweets saved in %s", category.Name), 4)

	selfLink := fmt.Sprintf("%s/feed/%d", g.baseURL, category.ID)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(posts) > 0 {
		lastBuildDate = cmp.Or(posts[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("tweetshelf/%s", g.version), 4)

	for _, post := range posts {
		g.writeItem(&buf, category, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, category database.Category, post database.Post) {
	buf.WriteString("    <item>\n")

	guid := post.OriginalURL
	if guid == "" {
		guid = fmt.Sprintf("tweetshelf-post-%d", post.ID)
	}
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", g.title(post), 6)
	g.writeElement(buf, "link", post.OriginalURL, 6)
	g.writeElement(buf, "description", cmp.Or(post.Text, "No description available"), 6)

	buf.WriteString("      <content:encoded><![CDATA[")
	buf.WriteString(g.contentHTML(post))
	buf.WriteString("]]></content:encoded>\n")

	g.writeElement(buf, "pubDate", g.publishedAt(post).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", g.author(post), 6)
	g.writeElement(buf, "category", category.Name, 6)

	// RSS 2.0 allows a single enclosure per item
	if len(post.MediaURLs) > 0 {
		ref := g.absolute(post.MediaURLs[0])
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(ref),
			html.EscapeString(g.mediaType(ref))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) title(post database.Post) string {
	text := strings.Join(strings.Fields(post.Text), " ")
	if utf8.RuneCountInString(text) > titleLimit {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:titleLimit])) + "..."
	}

	return fmt.Sprintf("%s: %s", post.Author, text)
}

func (g *Generator) author(post database.Post) string {
	if post.Handle == "" {
		return post.Author
	}
	return fmt.Sprintf("@%s (%s)", strings.TrimPrefix(post.Handle, "@"), post.Author)
}

// publishedAt prefers the tweet's own timestamp and falls back to when it was saved.
func (g *Generator) publishedAt(post database.Post) time.Time {
	if t, err := time.Parse(time.RFC3339, post.Timestamp); err == nil {
		return t
	}
	return post.CreatedAt
}

func (g *Generator) contentHTML(post database.Post) string {
	var b strings.Builder

	for _, line := range strings.Split(post.Text, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}

	for _, ref := range post.MediaURLs {
		b.WriteString(`<p><img src="`)
		b.WriteString(html.EscapeString(g.absolute(ref)))
		b.WriteString(`" alt=""></p>`)
	}

	return b.String()
}

// absolute turns locally mirrored refs into URLs a feed reader can fetch.
func (g *Generator) absolute(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return g.baseURL + ref
	}
	return ref
}

func (g *Generator) mediaType(ref string) string {
	ext := path.Ext(ref)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	return cmp.Or(mime.TypeByExtension(strings.ToLower(ext)), "application/octet-stream")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
