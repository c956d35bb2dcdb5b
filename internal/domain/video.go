package domain

import (
	"strings"
	"time"
)

// Video is the metadata of one content item as known to the caller's cache.
// The index never owns a Video; it stores a copy of the indexed fields and
// reconciles against the live instance at query time.
type Video struct {
	// ID is the opaque video identifier assigned by the upstream source.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Description is the free-text description.
	Description string `json:"description,omitempty"`

	// Keywords is the ordered keyword list. It is indexed as one
	// concatenated field; see MapKeywordMatches for the reverse mapping.
	Keywords []string `json:"keywords,omitempty"`

	// CaptionTracks holds one full transcript per language.
	CaptionTracks []CaptionTrack `json:"caption_tracks,omitempty"`

	// Uploaded is the upload timestamp, if known.
	Uploaded *time.Time `json:"uploaded,omitempty"`

	// ChannelID and PlaylistID locate the video in its collection.
	ChannelID  string `json:"channel_id,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`

	// ShardNumber assigns the video to an index shard. The assignment rule
	// is external; the index consumes the number as given.
	ShardNumber int `json:"shard_number"`

	// Unindexed is true while the video's current content has not been
	// merged into its shard: freshly fetched, changed upstream, or out of
	// sync. Cleared by a successful add/update on some shard.
	Unindexed bool `json:"unindexed,omitempty"`
}

// CaptionTrack is one language's full caption transcript.
type CaptionTrack struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// CaptionTrack returns the track for the given language, or nil.
func (v *Video) CaptionTrack(language string) *CaptionTrack {
	for i := range v.CaptionTracks {
		if v.CaptionTracks[i].Language == language {
			return &v.CaptionTracks[i]
		}
	}
	return nil
}

// Span locates a query hit within a field's original text.
type Span struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// End returns the exclusive end offset.
func (s Span) End() int { return s.Start + s.Length }

// MatchedText is a field's original text with the spans a query matched.
// Spans are ordered by start offset, may overlap, and never exceed the
// bounds of Text.
type MatchedText struct {
	Text  string `json:"text"`
	Spans []Span `json:"spans"`
}

// Highlight renders the text with pre/post markers around the matched
// ranges. Overlapping or adjacent spans are merged first so markers never
// nest.
func (m *MatchedText) Highlight(pre, post string) string {
	if len(m.Spans) == 0 {
		return m.Text
	}

	merged := make([]Span, 0, len(m.Spans))
	for _, s := range m.Spans {
		if s.Start < 0 || s.Start >= len(m.Text) || s.Length <= 0 {
			continue
		}
		if s.End() > len(m.Text) {
			s.Length = len(m.Text) - s.Start
		}
		if n := len(merged); n > 0 && s.Start <= merged[n-1].End() {
			if s.End() > merged[n-1].End() {
				merged[n-1].Length = s.End() - merged[n-1].Start
			}
			continue
		}
		merged = append(merged, s)
	}

	var sb strings.Builder
	last := 0
	for _, s := range merged {
		sb.WriteString(m.Text[last:s.Start])
		sb.WriteString(pre)
		sb.WriteString(m.Text[s.Start:s.End()])
		sb.WriteString(post)
		last = s.End()
	}
	sb.WriteString(m.Text[last:])
	return sb.String()
}

// CaptionMatch is a MatchedText for one caption track.
type CaptionMatch struct {
	Language string `json:"language"`
	MatchedText
}

// SearchResult is one query hit: the live video, its relevance score and
// the per-field highlighted matches. Scores are a library-defined relevance
// unit, meaningful for ranking only.
type SearchResult struct {
	Video          *Video         `json:"video"`
	Score          float64        `json:"score"`
	TitleMatches   *MatchedText   `json:"title_matches,omitempty"`
	DescMatches    *MatchedText   `json:"description_matches,omitempty"`
	KeywordMatches []KeywordMatch `json:"keyword_matches,omitempty"`
	CaptionMatches []CaptionMatch `json:"caption_matches,omitempty"`
}

// KeywordMatch is a match remapped from the concatenated keyword field back
// to one keyword of the original list.
type KeywordMatch struct {
	// Index is the position of the keyword in Video.Keywords.
	Index int `json:"index"`
	MatchedText
}
