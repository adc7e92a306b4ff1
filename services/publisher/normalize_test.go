package publisher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLineEndings(t *testing.T) {
	require.Equal(t, "a\nb\nc", Normalize("a\r\nb\rc"))
}

func TestNormalizeStripsTags(t *testing.T) {
	out := Normalize(`before <div class="x">middle</div> after`)
	require.Equal(t, "before middle after", out)
}

func TestNormalizeKeepsPlaceholderTags(t *testing.T) {
	tag := `<img src="__IMG_TAG_note_1700000000_1.png__" alt="image" title="image">`
	out := Normalize("text\n" + tag + "\n<span>gone</span>")
	require.Contains(t, out, tag)
	require.NotContains(t, out, "<span>")
}

func TestNormalizeFullwidth(t *testing.T) {
	// boundaries of the FF01..FF5E range plus the ideographic space;
	// CJK ideographs and punctuation outside the range pass through
	require.Equal(t, "!A~ x", Normalize("！Ａ～　x"))
	require.Equal(t, "中文、标点", Normalize("中文、标点"))
}

func TestNormalizeHeadings(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"##Title", "## Title"},
		{"##Title##", "## Title"},
		{"## Title ##", "## Title"},
		{"########Deep", "###### Deep"},
		{"## My/Heading?", "## MyHeading"},
		{`# a"b&c\d`, "# abcd"},
	} {
		require.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeUnsafeCharsOutsideHeadingsKept(t *testing.T) {
	require.Equal(t, "see the C: drive", Normalize("see the C: drive"))
}

func TestNormalizeWhitespace(t *testing.T) {
	out := Normalize("a\n   \n\n\n\nb  c")
	require.Equal(t, "a\n\nb c", out)
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"##Ｔitle##\r\n\r\n\r\ntext　with<b>markup</b>",
		"########x\n   \n## a/b:c\n",
		"para  with   runs\n＜i＞full-width tag＞\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		require.Equal(t, once, Normalize(once), "input %q", in)
	}
}
