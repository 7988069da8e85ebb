// Package parser turns dropped message files into note fields: YAML-frontmatter
// Markdown (.md) and RFC 5322 messages (.eml).
package parser

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	tagRe        = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlBlockRe  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	mdLinkRe     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdHeadingRe  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdListRe     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	mdQuoteRe    = regexp.MustCompile(`(?m)^\s*>\s?`)
	mdEmphasisRe = regexp.MustCompile("(\\*\\*|__|\\*|`+|~~)")
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Message is the parsed form of one dropped file.
type Message struct {
	From       string
	Subject    string
	ReceivedAt time.Time
	MessageID  string
	Tags       []string

	// Body is the text after frontmatter or headers. HTML holds the body
	// when it was sent as text/html.
	Body string
	HTML string
}

type header struct {
	From       string    `yaml:"from"`
	Subject    string    `yaml:"subject"`
	ReceivedAt time.Time `yaml:"received_at"`
	MessageID  string    `yaml:"message_id"`
	Tags       []string  `yaml:"tags"`
	HTML       bool      `yaml:"html"`
}

// Parse reads a Markdown message with optional YAML frontmatter.
// Invalid frontmatter is treated as part of the body.
func Parse(data []byte) (*Message, error) {
	h, body := splitFrontmatter(data)

	m := &Message{
		From:       strings.TrimSpace(h.From),
		Subject:    strings.TrimSpace(h.Subject),
		ReceivedAt: h.ReceivedAt,
		MessageID:  strings.TrimSpace(h.MessageID),
		Body:       body,
	}
	if h.HTML {
		m.HTML = body
	}
	if m.Subject == "" {
		m.Subject = firstHeading(body)
	}
	m.Tags = ExtractTags(body, h.Tags)
	return m, nil
}

// ParseEmail reads an RFC 5322 message. Only single-part text bodies are decoded.
func ParseEmail(data []byte) (*Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parser: read message: %w", err)
	}
	raw, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("parser: read body: %w", err)
	}
	body := strings.TrimLeft(string(raw), "\r\n")

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	m := &Message{
		From:      msg.Header.Get("From"),
		Subject:   strings.TrimSpace(subject),
		MessageID: strings.TrimSpace(msg.Header.Get("Message-Id")),
		Body:      body,
	}
	if addr, err := mail.ParseAddress(m.From); err == nil {
		m.From = addr.Address
	}
	if d, err := msg.Header.Date(); err == nil {
		m.ReceivedAt = d
	}
	if mt, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type")); err == nil && mt == "text/html" {
		m.HTML = body
	}
	m.Tags = ExtractTags(body, nil)
	return m, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without valid frontmatter the whole input is body.
func splitFrontmatter(data []byte) (header, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return header{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return header{}, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var h header
	if err := yaml.Unmarshal(yamlBlock, &h); err != nil {
		return header{}, string(data)
	}
	return h, body
}

// ExtractTags merges frontmatter tags with inline #tags, deduplicated.
func ExtractTags(body string, front []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range front {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// ExtractText strips Markdown and HTML markup and collapses whitespace.
func ExtractText(body string) string {
	s := htmlBlockRe.ReplaceAllString(body, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdHeadingRe.ReplaceAllString(s, "")
	s = mdListRe.ReplaceAllString(s, "")
	s = mdQuoteRe.ReplaceAllString(s, "")
	s = mdEmphasisRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
