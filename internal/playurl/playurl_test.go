package playurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyInput(t *testing.T) {
	assert.Empty(t, Parse("", ""))
	assert.Empty(t, Parse("", "EP1$https://a/1"))
	assert.Empty(t, Parse("youku", ""))
}

func TestParse_GroupAndEpisodeOrder(t *testing.T) {
	got := Parse("A$$$B", "t1$u1#t2$u2$$$t3$u3")

	want := []Group{
		{PlayerKey: "A", Episodes: []Entry{{Title: "t1", URL: "u1"}, {Title: "t2", URL: "u2"}}},
		{PlayerKey: "B", Episodes: []Entry{{Title: "t3", URL: "u3"}}},
	}
	assert.Equal(t, want, got)
}

func TestParse_BlankKeyDropsItsGroup(t *testing.T) {
	got := Parse("$$$B", "x$y$$$t$u")

	require.Len(t, got, 1)
	assert.Equal(t, Group{PlayerKey: "B", Episodes: []Entry{{Title: "t", URL: "u"}}}, got[0])

	got = Parse("A$$$   $$$C", "a$1$$$b$2$$$c$3")
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].PlayerKey)
	assert.Equal(t, "C", got[1].PlayerKey)
	assert.Equal(t, []Entry{{Title: "c", URL: "3"}}, got[1].Episodes)
}

func TestParse_MissingURLDiscarded(t *testing.T) {
	got := Parse("A", "onlytitle#$onlyurl")

	require.Len(t, got, 1)
	assert.Equal(t, []Entry{{Title: "", URL: "onlyurl"}}, got[0].Episodes)
}

func TestParse_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		playFrom string
		playURL  string
		want     []Group
	}{
		{
			name:     "consecutive and trailing hashes",
			playFrom: "A",
			playURL:  "##t1$u1###t2$u2#",
			want:     []Group{{PlayerKey: "A", Episodes: []Entry{{"t1", "u1"}, {"t2", "u2"}}}},
		},
		{
			name:     "fewer url groups than keys",
			playFrom: "A$$$B",
			playURL:  "t$u",
			want: []Group{
				{PlayerKey: "A", Episodes: []Entry{{"t", "u"}}},
				{PlayerKey: "B", Episodes: []Entry{}},
			},
		},
		{
			name:     "key is trimmed, case kept",
			playFrom: "  YouKu ",
			playURL:  "t$u",
			want:     []Group{{PlayerKey: "YouKu", Episodes: []Entry{{"t", "u"}}}},
		},
		{
			name:     "url keeps later dollars",
			playFrom: "A",
			playURL:  "t$https://x/?a=$b",
			want:     []Group{{PlayerKey: "A", Episodes: []Entry{{"t", "https://x/?a=$b"}}}},
		},
		{
			name:     "title with empty url is skipped",
			playFrom: "A",
			playURL:  "t$#ok$u",
			want:     []Group{{PlayerKey: "A", Episodes: []Entry{{"ok", "u"}}}},
		},
		{
			name:     "group with nothing usable is still emitted",
			playFrom: "A$$$B",
			playURL:  "junk#more$$$t$u",
			want: []Group{
				{PlayerKey: "A", Episodes: []Entry{}},
				{PlayerKey: "B", Episodes: []Entry{{"t", "u"}}},
			},
		},
		{
			name:     "extra url groups are ignored",
			playFrom: "A",
			playURL:  "t$u$$$x$y",
			want:     []Group{{PlayerKey: "A", Episodes: []Entry{{"t", "u"}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.playFrom, tt.playURL))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Segment{Kind: SegmentSkipped, Reason: SkipNoSeparator}, Classify("onlytitle"))
	assert.Equal(t, Segment{Kind: SegmentSkipped, Reason: SkipEmptyURL}, Classify("title$"))
	assert.Equal(t, Segment{Kind: SegmentEpisode, Entry: Entry{URL: "u"}}, Classify("$u"))
}

func TestEncode_RoundTrip(t *testing.T) {
	groups := []Group{
		{PlayerKey: "youku", Episodes: []Entry{{"EP1", "https://a/1"}, {"", "https://a/2"}}},
		{PlayerKey: "m3u8", Episodes: []Entry{{"HD", "https://b/1.m3u8"}}},
	}

	from, url := Encode(groups)
	assert.Equal(t, "youku$$$m3u8", from)
	assert.Equal(t, "EP1$https://a/1#$https://a/2$$$HD$https://b/1.m3u8", url)
	assert.Equal(t, groups, Parse(from, url))
}

func TestExplain(t *testing.T) {
	from := "youku$$$ $$$m3u8"
	url := "EP1$https://a/1#broken##EP3$#EP4$https://a/4$$$junk$$$HD$https://b/1.m3u8"

	assert.Equal(t, []Skipped{
		{PlayerKey: "youku", Index: 1, Raw: "broken", Reason: SkipNoSeparator},
		{PlayerKey: "youku", Index: 2, Raw: "EP3$", Reason: SkipEmptyURL},
	}, Explain(from, url))

	assert.Nil(t, Explain("youku", "EP1$https://a/1"))
	assert.Nil(t, Explain("", "x"))
}
