package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"
	noTitle = "No title found"
)

type Page struct {
	URL   string
	Title string
	Text  string
}

// Prompt renders the page as the user content of a job-posting request.
func (p Page) Prompt() string {
	return fmt.Sprintf("You're looking at the job description website titled '%s'.\n\nHere's the job description:\n\n%s", p.Title, p.Text)
}

type WebFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewWebFetcher() *WebFetcher {
	return &WebFetcher{
		Client:   &http.Client{Timeout: 20 * time.Second},
		MaxBytes: 5 << 20,
	}
}

func (f *WebFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	page, err := ParseHTML(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", url, err)
	}
	page.URL = url
	return page, nil
}

// stripped elements never contribute text
var stripped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Img: true, atom.Input: true,
	atom.Noscript: true, atom.Svg: true, atom.Iframe: true, atom.Video: true,
	atom.Audio: true, atom.Picture: true, atom.Source: true, atom.Canvas: true,
	atom.Template: true, atom.Head: true,
}

// ParseHTML returns the document title and the visible body text, one text node per line.
func ParseHTML(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}

	page := Page{Title: noTitle}
	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if page.Title == noTitle && n.FirstChild != nil {
					if t := strings.TrimSpace(n.FirstChild.Data); t != "" {
						page.Title = t
					}
				}
			case atom.Body:
				if body == nil {
					body = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	root := body
	if root == nil {
		root = doc
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && stripped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	page.Text = strings.Join(lines, "\n")
	return page, nil
}
