package segment

import (
	"errors"
	"iter"
	"testing"

	"summarizer-agents/client"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fragments(parts ...string) iter.Seq2[client.Fragment, error] {
	return func(yield func(client.Fragment, error) bool) {
		for _, p := range parts {
			if !yield(client.Fragment{Content: p}, nil) {
				return
			}
		}
		yield(client.Fragment{Done: true}, nil)
	}
}

func TestSegments(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  []Segment
	}{
		{
			name:  "boundary split across fragments",
			parts: []string{"Hello wor", "ld. This is a test."},
			want:  []Segment{{Text: "Hello world."}, {Text: "This is a test."}},
		},
		{
			name:  "paragraph then sentences",
			parts: []string{"A.\n\nB."},
			want:  []Segment{{Text: "A."}, {Text: "B.", LineStart: true}},
		},
		{
			name:  "several segments in one delta",
			parts: []string{"One. Two! Three? "},
			want:  []Segment{{Text: "One."}, {Text: "Two!"}, {Text: "Three?"}},
		},
		{
			name:  "blank line ends a paragraph",
			parts: []string{"Intro line\n\n\nNext part"},
			want:  []Segment{{Text: "Intro line", Paragraph: true}, {Text: "Next part", LineStart: true}},
		},
		{
			name:  "lines before the match stay with the segment",
			parts: []string{"Title\n- first.\n- second."},
			want:  []Segment{{Text: "Title\n- first."}, {Text: "- second.", LineStart: true}},
		},
		{
			name:  "line break carried across fragments",
			parts: []string{"- first.", "\n- second.\n", "- third."},
			want: []Segment{
				{Text: "- first."},
				{Text: "- second.", LineStart: true},
				{Text: "- third.", LineStart: true},
			},
		},
		{
			name:  "no-break space after terminator",
			parts: []string{"Bonjour.\u00a0Merci beaucoup."},
			want:  []Segment{{Text: "Bonjour."}, {Text: "Merci beaucoup."}},
		},
		{
			name:  "vertical tab and ideographic space after terminator",
			parts: []string{"One.\vTwo!\u3000Three?\u0085Four."},
			want:  []Segment{{Text: "One."}, {Text: "Two!"}, {Text: "Three?"}, {Text: "Four."}},
		},
		{
			name:  "remainder emitted at end",
			parts: []string{"Done. No terminator ", "here  "},
			want:  []Segment{{Text: "Done."}, {Text: "No terminator here"}},
		},
		{
			name:  "decimal split at fragment edge",
			parts: []string{"Pi is 3.", "14 today."},
			want:  []Segment{{Text: "Pi is 3."}, {Text: "14 today."}},
		},
		{
			name:  "decimal kept inside one fragment",
			parts: []string{"Pi is 3.14 today."},
			want:  []Segment{{Text: "Pi is 3.14 today."}},
		},
		{
			name:  "empty deltas ignored",
			parts: []string{"", "Hi", "", ".", ""},
			want:  []Segment{{Text: "Hi."}},
		},
		{
			name:  "whitespace only",
			parts: []string{"  ", "\n\n", " "},
			want:  nil,
		},
		{
			name:  "no fragments",
			parts: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Collect(Segments(fragments(tt.parts...)))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegments_FragmentBoundaryIndependent(t *testing.T) {
	text := "The report covers three areas. Revenue grew!\n\nCosts fell? Margins held steady.\nOutlook is stable"

	whole := Collect(Segments(fragments(text)))

	var perRune []string
	for _, r := range text {
		perRune = append(perRune, string(r))
	}

	var chunks []string
	for i := 0; i < len(text); i += 7 {
		chunks = append(chunks, text[i:min(i+7, len(text))])
	}

	for name, parts := range map[string][]string{"per rune": perRune, "chunks of 7": chunks} {
		t.Run(name, func(t *testing.T) {
			got := Collect(Segments(fragments(parts...)))
			if diff := cmp.Diff(whole, got); diff != "" {
				t.Errorf("segments differ from single fragment (-whole +split):\n%s", diff)
			}
		})
	}
}

func TestSegments_MalformedFragmentDoesNotEndStream(t *testing.T) {
	bad := &client.DecodeError{Line: "{oops", Err: errors.New("invalid character")}
	seq := func(yield func(client.Fragment, error) bool) {
		_ = yield(client.Fragment{Content: "First part. Sec"}, nil) &&
			yield(client.Fragment{}, bad) &&
			yield(client.Fragment{Content: "ond part."}, nil)
	}

	got := Collect(Segments(seq))
	want := []Segment{
		{Text: "First part."},
		{Err: bad},
		{Text: "Second part."},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
	}
	if got[1].String() != "[ERROR] Streaming error: decode stream line: invalid character" {
		t.Errorf("unexpected error marker %q", got[1].String())
	}
}

func TestSegments_EarlyBreakStopsUpstream(t *testing.T) {
	pulled := 0
	released := 0
	seq := func(yield func(client.Fragment, error) bool) {
		defer func() { released++ }()
		for _, p := range []string{"One. ", "Two. ", "Three. ", "Four."} {
			pulled++
			if !yield(client.Fragment{Content: p}, nil) {
				return
			}
		}
	}

	var got []string
	for s := range Segments(seq) {
		got = append(got, s.Text)
		if len(got) == 2 {
			break
		}
	}

	if diff := cmp.Diff([]string{"One.", "Two."}, got); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if pulled != 2 {
		t.Errorf("expected 2 fragments pulled, got %d", pulled)
	}
	if released != 1 {
		t.Errorf("expected upstream released once, got %d", released)
	}
}

func TestSegmentString(t *testing.T) {
	if got := (Segment{Text: "Hi."}).String(); got != "Hi." {
		t.Errorf("expected %q, got %q", "Hi.", got)
	}
	if got := Error(errors.New("boom")).String(); got != "[ERROR] Streaming error: boom" {
		t.Errorf("unexpected marker %q", got)
	}
	custom := Segment{Text: "[ERROR] Could not connect", Err: errors.New("dial")}
	if got := custom.String(); got != "[ERROR] Could not connect" {
		t.Errorf("unexpected marker %q", got)
	}
}

func TestJoin(t *testing.T) {
	segs := []Segment{
		{Text: "Title", Paragraph: true},
		{Text: "First."},
		{Text: "Second."},
		Error(errors.New("lost line")),
		{Text: "Last."},
	}

	got := Join(func(yield func(Segment) bool) {
		for _, s := range segs {
			if !yield(s) {
				return
			}
		}
	})

	want := "Title\n\nFirst. Second. [ERROR] Streaming error: lost line\nLast."
	if got != want {
		t.Errorf("Join() = %q, want %q", got, want)
	}
}

func TestJoin_KeepsLineBreaks(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "bulleted list",
			parts: []string{"**AI Launch**\n- Launched software.\n- Automates logistics.\n- Cuts costs by 30%."},
			want:  "**AI Launch**\n- Launched software.\n- Automates logistics.\n- Cuts costs by 30%.",
		},
		{
			name:  "list split mid line",
			parts: []string{"**AI Launch**\n- Launched soft", "ware.\n", "- Automates logistics.", "\n- Cuts costs by 30%."},
			want:  "**AI Launch**\n- Launched software.\n- Automates logistics.\n- Cuts costs by 30%.",
		},
		{
			name:  "sentences on one line",
			parts: []string{"One. Two.\nThree."},
			want:  "One. Two.\nThree.",
		},
		{
			name:  "paragraph",
			parts: []string{"Title\n\n\nBody. More."},
			want:  "Title\n\nBody. More.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(Segments(fragments(tt.parts...))); got != tt.want {
				t.Errorf("Join() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeparator(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Segment
		want       string
	}{
		{name: "sentence", prev: Segment{Text: "A."}, next: Segment{Text: "B."}, want: " "},
		{name: "line start", prev: Segment{Text: "A."}, next: Segment{Text: "- B.", LineStart: true}, want: "\n"},
		{name: "paragraph wins", prev: Segment{Text: "A", Paragraph: true}, next: Segment{Text: "B.", LineStart: true}, want: "\n\n"},
		{name: "after error", prev: Error(errors.New("x")), next: Segment{Text: "B."}, want: "\n"},
		{name: "error inline", prev: Segment{Text: "A."}, next: Segment{Err: errors.New("x"), LineStart: true}, want: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Separator(tt.prev, tt.next); got != tt.want {
				t.Errorf("Separator() = %q, want %q", got, tt.want)
			}
		})
	}
}
