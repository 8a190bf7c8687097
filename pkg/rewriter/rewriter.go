// Package rewriter applies element-level mutations to an HTML stream in a
// single pass, without buffering the document.
package rewriter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// Element is a start tag handed to a Visitor. Mutations are recorded on it
// and applied when the tag is written back out.
type Element struct {
	Tag  string
	Attr []html.Attribute

	selfClosing bool
	modified    bool
	removed     bool
	innerText   *string
}

// NewElement builds an element for injection (e.g. from Visitor.OnHeadEnd).
// Attributes are given as key, value pairs.
func NewElement(tag string, kv ...string) Element {
	el := Element{Tag: tag}
	for i := 0; i+1 < len(kv); i += 2 {
		el.Attr = append(el.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return el
}

// Attribute returns the value of key and whether it is present.
func (e *Element) Attribute(key string) (string, bool) {
	for _, a := range e.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute overwrites key, adding it when missing.
func (e *Element) SetAttribute(key, val string) {
	e.modified = true
	for i, a := range e.Attr {
		if a.Namespace == "" && a.Key == key {
			e.Attr[i].Val = val
			return
		}
	}
	e.Attr = append(e.Attr, html.Attribute{Key: key, Val: val})
}

// Remove drops the element from the output.
func (e *Element) Remove() {
	e.removed = true
}

// SetInnerText replaces everything up to the matching end tag with text.
func (e *Element) SetInnerText(text string) {
	e.innerText = &text
}

func (e *Element) String() string {
	tt := html.StartTagToken
	if e.selfClosing {
		tt = html.SelfClosingTagToken
	}
	return html.Token{Type: tt, Data: e.Tag, Attr: e.Attr}.String()
}

// Visitor decides the mutations for each start tag and the elements to
// append when the head closes.
type Visitor interface {
	OnElement(el *Element) error
	OnHeadEnd() []Element
}

// Options tunes Rewrite.
type Options struct {
	Logger *slog.Logger
	// OnError is called for every element whose mutation was skipped.
	OnError func(tag string, err error)
}

type rewrite struct {
	w        io.Writer
	z        *html.Tokenizer
	v        Visitor
	opts     Options
	headDone bool
	err      error
}

// Rewrite copies src to dst, letting v mutate elements on the way through.
// Tokens the visitor leaves alone are written back byte for byte.
func Rewrite(dst io.Writer, src io.Reader, v Visitor, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	rw := &rewrite{w: dst, z: html.NewTokenizer(src), v: v, opts: opts}
	return rw.run()
}

func (rw *rewrite) write(p []byte) {
	if rw.err != nil {
		return
	}
	_, rw.err = rw.w.Write(p)
}

func (rw *rewrite) writeString(s string) {
	if rw.err != nil {
		return
	}
	_, rw.err = io.WriteString(rw.w, s)
}

// closeHead emits the visitor's head elements once.
func (rw *rewrite) closeHead() {
	if rw.headDone {
		return
	}
	rw.headDone = true
	for _, el := range rw.v.OnHeadEnd() {
		rw.writeString(el.String())
	}
}

func (rw *rewrite) run() error {
	for rw.err == nil {
		tt := rw.z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(rw.z.Err(), io.EOF) {
				rw.closeHead()
				return rw.err
			}
			return rw.z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			rw.startTag(tt)

		case html.EndTagToken:
			raw := append([]byte(nil), rw.z.Raw()...)
			name, _ := rw.z.TagName()
			if string(name) == "head" {
				rw.closeHead()
			}
			rw.write(raw)

		default:
			rw.write(rw.z.Raw())
		}
	}
	return rw.err
}

func (rw *rewrite) startTag(tt html.TokenType) {
	// Token lowercases names inside the tokenizer buffer, so keep the raw
	// bytes first.
	raw := append([]byte(nil), rw.z.Raw()...)
	tok := rw.z.Token()

	if tok.Data == "body" {
		rw.closeHead()
	}

	el := &Element{Tag: tok.Data, Attr: tok.Attr, selfClosing: tt == html.SelfClosingTagToken}
	if err := visit(rw.v, el); err != nil {
		rw.opts.Logger.Warn("Skipping element mutation", "tag", tok.Data, "error", err)
		if rw.opts.OnError != nil {
			rw.opts.OnError(tok.Data, err)
		}
		rw.write(raw)
		return
	}

	if el.removed {
		return
	}
	if el.modified {
		rw.writeString(el.String())
	} else {
		rw.write(raw)
	}

	if el.innerText != nil && tt == html.StartTagToken {
		rw.writeString(html.EscapeString(*el.innerText))
		rw.skipTo(el.Tag)
	}
}

// skipTo discards tokens up to and including the end tag for tag, then
// writes that end tag.
func (rw *rewrite) skipTo(tag string) {
	for {
		switch rw.z.Next() {
		case html.ErrorToken:
			// Let run observe the same error on its next call to Next.
			return
		case html.EndTagToken:
			raw := append([]byte(nil), rw.z.Raw()...)
			name, _ := rw.z.TagName()
			if strings.EqualFold(string(name), tag) {
				rw.write(raw)
				return
			}
		}
	}
}

func visit(v Visitor, el *Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while visiting <%s>: %v", el.Tag, r)
		}
	}()
	return v.OnElement(el)
}
