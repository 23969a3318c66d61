// Package playurl decodes and encodes the legacy dual-field playback format.
//
// vod_play_from lists player keys and vod_play_url lists the matching episode
// groups, both joined by "$$$". Inside a group episodes are joined by "#",
// and each episode is "title$url".
//
//	play_from: youku$$$m3u8
//	play_url:  EP1$https://a/1#EP2$https://a/2$$$EP1$https://b/1.m3u8
package playurl

import "strings"

const (
	GroupSep   = "$$$"
	EpisodeSep = "#"
	FieldSep   = "$"
)

// Entry is a single episode: a possibly empty title and a non-empty URL.
type Entry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Group is one player's ordered episode list for a video.
type Group struct {
	PlayerKey string  `json:"player_key"`
	Episodes  []Entry `json:"episodes"`
}

// SegmentKind tags the outcome of decoding one "#"-separated segment.
type SegmentKind int

const (
	SegmentEpisode SegmentKind = iota
	SegmentSkipped
)

// SkipReason says why a segment produced no episode.
type SkipReason string

const (
	SkipNoSeparator SkipReason = "no title/url separator"
	SkipEmptyURL    SkipReason = "empty url"
)

// Segment is the tagged result of Classify.
type Segment struct {
	Kind   SegmentKind
	Entry  Entry
	Reason SkipReason
}

// Classify decodes one episode segment. The split happens on the first "$",
// so any later "$" stays part of the URL.
func Classify(segment string) Segment {
	title, url, ok := strings.Cut(segment, FieldSep)
	if !ok {
		return Segment{Kind: SegmentSkipped, Reason: SkipNoSeparator}
	}
	if url == "" {
		return Segment{Kind: SegmentSkipped, Reason: SkipEmptyURL}
	}
	return Segment{Kind: SegmentEpisode, Entry: Entry{Title: title, URL: url}}
}

// Parse decodes the two legacy fields. It never fails: malformed parts are
// dropped and an empty input on either side yields no groups.
//
// A blank player key drops its whole position, including the url group at the
// same index. Every non-blank key yields a Group even when none of its
// segments survive.
func Parse(playFrom, playURL string) []Group {
	if playFrom == "" || playURL == "" {
		return nil
	}

	keys := strings.Split(playFrom, GroupSep)
	urlGroups := strings.Split(playURL, GroupSep)

	out := make([]Group, 0, len(keys))
	for i, raw := range keys {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}

		var group string
		if i < len(urlGroups) {
			group = urlGroups[i]
		}

		out = append(out, Group{PlayerKey: key, Episodes: parseEpisodes(group)})
	}
	return out
}

func parseEpisodes(group string) []Entry {
	eps := make([]Entry, 0, strings.Count(group, EpisodeSep)+1)
	for _, part := range strings.Split(group, EpisodeSep) {
		if part == "" {
			continue
		}
		if seg := Classify(part); seg.Kind == SegmentEpisode {
			eps = append(eps, seg.Entry)
		}
	}
	return eps
}

// Skipped is a segment Parse dropped. Index counts the non-empty segments
// of the group from 0.
type Skipped struct {
	PlayerKey string     `json:"player_key"`
	Index     int        `json:"index"`
	Raw       string     `json:"raw"`
	Reason    SkipReason `json:"reason"`
}

// Explain lists the segments Parse drops from the same input, in order.
// Positions with a blank player key are not reported.
func Explain(playFrom, playURL string) []Skipped {
	if playFrom == "" || playURL == "" {
		return nil
	}

	var out []Skipped
	urlGroups := strings.Split(playURL, GroupSep)
	for i, raw := range strings.Split(playFrom, GroupSep) {
		key := strings.TrimSpace(raw)
		if key == "" || i >= len(urlGroups) {
			continue
		}
		n := 0
		for _, part := range strings.Split(urlGroups[i], EpisodeSep) {
			if part == "" {
				continue
			}
			if seg := Classify(part); seg.Kind == SegmentSkipped {
				out = append(out, Skipped{PlayerKey: key, Index: n, Raw: part, Reason: seg.Reason})
			}
			n++
		}
	}
	return out
}

// Encode is the inverse of Parse for well-formed groups.
func Encode(groups []Group) (playFrom, playURL string) {
	keys := make([]string, 0, len(groups))
	urls := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.PlayerKey)

		parts := make([]string, 0, len(g.Episodes))
		for _, e := range g.Episodes {
			parts = append(parts, e.Title+FieldSep+e.URL)
		}
		urls = append(urls, strings.Join(parts, EpisodeSep))
	}
	return strings.Join(keys, GroupSep), strings.Join(urls, GroupSep)
}
