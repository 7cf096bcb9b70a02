// Package segment turns a stream of token deltas into sentences and
// paragraphs as soon as their boundary is seen.
package segment

import (
	"iter"
	"regexp"
	"strings"
	"unicode"

	"summarizer-agents/client"
)

// boundary matches a non-empty run of characters on one line followed by a
// blank line or a sentence terminator, then whitespace or the end of the
// buffer. The trailing whitespace is any Unicode space, not only ASCII.
// Abbreviations and decimals are not special: "3.14" received as "3." and
// "14" splits after the period.
var boundary = regexp.MustCompile(`(.+?)(\n{2,}|[.!?])([\s\v\p{Z}\x{85}]|$)`)

const errorPrefix = "[ERROR] Streaming error: "

// Segment is one completed unit of output. Error segments carry Err and are
// interleaved with text segments in arrival order.
//
// LineStart records that a line break came between the previous segment and
// this one, so joining can keep list items and headings on their own lines.
type Segment struct {
	Text      string
	Paragraph bool
	LineStart bool
	Err       error
}

// Error returns an error segment for err.
func Error(err error) Segment {
	return Segment{Err: err}
}

func (s Segment) IsError() bool {
	return s.Err != nil
}

// String renders the segment for display. An error segment renders as its
// Text when one was set, otherwise as a streaming error marker.
func (s Segment) String() string {
	if s.Err == nil || s.Text != "" {
		return s.Text
	}
	return errorPrefix + s.Err.Error()
}

// Segments consumes fragments and yields segments in boundary order. Errors
// from the fragment sequence become error segments and consumption goes on.
// Whatever text is left when the fragments run out is yielded last.
//
// Stopping early stops the fragment sequence too, which releases the
// underlying connection.
func Segments(fragments iter.Seq2[client.Fragment, error]) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		var buf strings.Builder
		lineBreak := false

		for frag, err := range fragments {
			if err != nil {
				if !yield(Error(err)) {
					return
				}
				continue
			}
			if frag.Content == "" {
				continue
			}

			buf.WriteString(frag.Content)
			rest, brk, ok := drain(buf.String(), lineBreak, yield)
			lineBreak = brk
			if !ok {
				return
			}
			buf.Reset()
			buf.WriteString(rest)
		}

		rest := buf.String()
		if tail := strings.TrimSpace(rest); tail != "" {
			yield(Segment{Text: tail, LineStart: lineBreak || startsLine(rest)})
		}
	}
}

// drain yields every complete segment at the front of text and returns the
// unmatched remainder. lineBreak carries whether a line break was consumed
// after the last segment yielded. It reports false once yield asks to stop.
func drain(text string, lineBreak bool, yield func(Segment) bool) (string, bool, bool) {
	for {
		m := boundary.FindStringSubmatchIndex(text)
		if m == nil {
			return text, lineBreak, true
		}

		raw := text[:m[5]]
		seg := Segment{
			Text:      strings.TrimSpace(raw),
			Paragraph: strings.Contains(text[m[4]:m[5]], "\n"),
			LineStart: lineBreak || startsLine(raw),
		}
		after := text[m[6]:m[7]]
		text = text[m[1]:]

		if seg.Text == "" {
			lineBreak = seg.LineStart || strings.Contains(raw, "\n") || strings.Contains(after, "\n")
			continue
		}
		lineBreak = strings.Contains(after, "\n")
		if !yield(seg) {
			return text, lineBreak, false
		}
	}
}

// startsLine reports whether the whitespace leading s holds a line break.
func startsLine(s string) bool {
	lead := s[:len(s)-len(strings.TrimLeftFunc(s, unicode.IsSpace))]
	return strings.Contains(lead, "\n")
}

// Collect drains segs into a slice.
func Collect(segs iter.Seq[Segment]) []Segment {
	var out []Segment
	for s := range segs {
		out = append(out, s)
	}
	return out
}

// Join rebuilds display text from segments. A paragraph is followed by a
// blank line and an error marker by a line break. A segment that started on
// a new line is put on one; other sentences are separated by a space.
func Join(segs iter.Seq[Segment]) string {
	var (
		b    strings.Builder
		prev Segment
	)
	first := true
	for s := range segs {
		if !first {
			b.WriteString(Separator(prev, s))
		}
		b.WriteString(s.String())
		prev, first = s, false
	}
	return strings.TrimSpace(b.String())
}

// Separator is the text Join puts between prev and next.
func Separator(prev, next Segment) string {
	switch {
	case prev.IsError():
		return "\n"
	case prev.Paragraph:
		return "\n\n"
	case next.LineStart && !next.IsError():
		return "\n"
	default:
		return " "
	}
}
