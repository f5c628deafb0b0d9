// Package webcontent provides the `read_content` tool,
// that fetches a web page and extracts its readable text.
package webcontent

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/pkg/schema"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "webcontent")

const (
	// ToolName is the name of the function exposed to the LLM
	ToolName = "read_content"
	// ProviderID is used in the errors of the fetch
	ProviderID = "web"

	DefaultUserAgent        = "Mozilla/5.0 (compatible; toolrouter/1.0)"
	DefaultMaxContentLength = int64(1 << 20)
)

// Request represents the tool input.
type Request struct {
	URL string `json:"url" yaml:"url" validate:"required" jsonschema:"title=URL,description=The URL of the web page to read"`
}

// Response represents the tool output.
type Response struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Content string `json:"content" yaml:"content"`
}

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Tool reads the content of a web page
type Tool struct {
	userAgent        string
	maxContentLength int64
	httpClient       Doer
}

var _ tools.Tool[Request, Response] = (*Tool)(nil)

// Option configures the Tool
type Option func(*Tool)

// WithUserAgent sets User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(t *Tool) {
		if userAgent != "" {
			t.userAgent = userAgent
		}
	}
}

// WithMaxContentLength sets the limit of the page size to read
func WithMaxContentLength(n int64) Option {
	return func(t *Tool) {
		if n > 0 {
			t.maxContentLength = n
		}
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client Doer) Option {
	return func(t *Tool) {
		t.httpClient = client
	}
}

// New returns the tool
func New(opts ...Option) *Tool {
	t := &Tool{
		userAgent:        DefaultUserAgent,
		maxContentLength: DefaultMaxContentLength,
		httpClient:       http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Reads the content of the web page at the given URL. Use this function when the user asks about the content of a web page."
}

func (t *Tool) Parameters() any {
	sc, err := schema.For[Request]()
	if err != nil {
		logger.KV(xlog.ERROR, "status", "schema_failed", "err", err.Error())
		return nil
	}
	return sc
}

// Run fetches the page and extracts its text.
func (t *Tool) Run(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.WithMessagef(tools.ErrInvalidToolArguments, "invalid url: %q", req.URL)
	}

	doc, err := t.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	res := &Response{
		URL:   u.String(),
		Title: strings.TrimSpace(doc.Find("head title").First().Text()),
	}
	res.Content, err = extractContent(doc, u)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "extracted",
		"url", res.URL,
		"size", len(res.Content),
	)
	return res, nil
}

// Call executes the tool with JSON arguments and returns the page text.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req Request
	if err := tools.DecodeArguments(input, &req); err != nil {
		return "", err
	}
	res, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (t *Tool) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html")

	r, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", target)
	}
	defer func() { _ = r.Body.Close() }()

	body := io.LimitReader(r.Body, t.maxContentLength)
	if r.StatusCode < 200 || r.StatusCode > 299 {
		raw, _ := io.ReadAll(body)
		return nil, &provider.ProviderHTTPError{
			ProviderID: ProviderID,
			Status:     r.StatusCode,
			Body:       slices.StringUpto(string(raw), 256),
		}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	return doc, nil
}

var (
	spaces     = regexp.MustCompile(`\s+`)
	blankLines = regexp.MustCompile(`\r?\n{2,}`)
)

func extractContent(doc *goquery.Document, u *url.URL) (string, error) {
	for _, tag := range []string{"script", "style", "nav", "header", "footer", "noscript"} {
		doc.Find(tag).Remove()
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
		if txt != "" {
			paragraphs = append(paragraphs, txt)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n"), nil
	}

	md, err := htmltomarkdown.ConvertString(
		mainContent(doc),
		converter.WithDomain(u.Scheme+"://"+u.Host),
	)
	if err != nil {
		return "", errors.Wrap(err, "convert to markdown")
	}
	return cleanMarkdown(md), nil
}

func mainContent(doc *goquery.Document) string {
	for _, selector := range []string{"main", "article", "#content, #main", ".content, .main", "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			if html, err := sel.Html(); err == nil && strings.TrimSpace(html) != "" {
				return html
			}
		}
	}
	html, _ := doc.Html()
	return html
}

func cleanMarkdown(content string) string {
	content = blankLines.ReplaceAllString(content, "\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
