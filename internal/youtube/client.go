// Package youtube talks to YouTube's innertube endpoints to fetch video
// metadata, caption transcripts and collection listings. It implements the
// video source and playlist refresher the pipeline consumes.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/playlist"
)

const (
	playerURL = "https://www.youtube.com/youtubei/v1/player"
	browseURL = "https://www.youtube.com/youtubei/v1/browse"

	clientVersion = "19.09.37"
	userAgent     = "com.google.android.youtube/" + clientVersion + " (Linux; Android 2.3.7)"
)

// Client wraps the handful of YouTube API calls the pipeline relies on.
type Client struct {
	httpClient *http.Client
	shardSize  int
}

// New creates a client with sane defaults. shardSize is the number of
// videos per index shard used when assigning newly discovered videos.
func New(shardSize int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		shardSize:  shardSize,
	}
}

func clientContext() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"hl":            "en",
			"gl":            "US",
			"clientName":    "ANDROID",
			"clientVersion": clientVersion,
		},
	}
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("request failed: %s (%s)", resp.Status, string(snippet))
	}
	return io.ReadAll(resp.Body)
}

// GetVideo fetches one video's metadata including its caption transcripts.
// The returned video is flagged Unindexed; merging it into a shard clears
// the flag. scopeHint is accepted for interface compatibility; this client
// does not cache per scope.
func (c *Client) GetVideo(ctx context.Context, id string, scopeHint string) (*domain.Video, error) {
	data, err := c.post(ctx, playerURL, map[string]any{
		"videoId": id,
		"context": clientContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch video %s: %w", id, err)
	}

	var decoded struct {
		VideoDetails struct {
			Title            string   `json:"title"`
			ShortDescription string   `json:"shortDescription"`
			Keywords         []string `json:"keywords"`
			ChannelID        string   `json:"channelId"`
		} `json:"videoDetails"`
		Microformat struct {
			PlayerMicroformatRenderer struct {
				PublishDate string `json:"publishDate"`
			} `json:"playerMicroformatRenderer"`
		} `json:"microformat"`
		Captions struct {
			PlayerCaptionsTracklistRenderer struct {
				CaptionTracks []struct {
					BaseURL      string `json:"baseUrl"`
					LanguageCode string `json:"languageCode"`
				} `json:"captionTracks"`
			} `json:"playerCaptionsTracklistRenderer"`
		} `json:"captions"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("parse video %s: %w", id, err)
	}

	v := &domain.Video{
		ID:          id,
		Title:       decoded.VideoDetails.Title,
		Description: decoded.VideoDetails.ShortDescription,
		Keywords:    decoded.VideoDetails.Keywords,
		ChannelID:   decoded.VideoDetails.ChannelID,
		Unindexed:   true,
	}
	if published := decoded.Microformat.PlayerMicroformatRenderer.PublishDate; published != "" {
		// publishDate comes as 2006-01-02, occasionally with a time part.
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, published); err == nil {
				v.Uploaded = &t
				break
			}
		}
	}

	for _, track := range decoded.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks {
		if track.BaseURL == "" {
			continue
		}
		text, err := c.fetchTranscript(ctx, track.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s captions of %s: %w", track.LanguageCode, id, err)
		}
		if text == "" {
			continue
		}
		v.CaptionTracks = append(v.CaptionTracks, domain.CaptionTrack{
			Language: track.LanguageCode,
			Text:     text,
		})
	}
	return v, nil
}

// fetchTranscript downloads a caption track's timedtext XML and flattens it
// to plain text.
func (c *Client) fetchTranscript(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript request failed: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return FlattenTimedText(data)
}

// FlattenTimedText joins the cue texts of a timedtext XML document into one
// transcript string, unescaping entities.
func FlattenTimedText(data []byte) (string, error) {
	var doc struct {
		Texts []struct {
			Value string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse timedtext: %w", err)
	}
	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		cue := strings.TrimSpace(html.UnescapeString(t.Value))
		if cue != "" {
			parts = append(parts, cue)
		}
	}
	return strings.Join(parts, " "), nil
}

// RefreshPlaylist starts a background sync of the scope's known video list
// against upstream and returns a wait function joining it. Newly discovered
// videos are appended unindexed, with their shard assigned by list position.
func (c *Client) RefreshPlaylist(ctx context.Context, scope *domain.Scope, pl *playlist.Playlist) (func() error, error) {
	browseID, err := browseIDFor(scope)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.refresh(ctx, browseID, pl)
	}()
	return func() error { return <-done }, nil
}

// browseIDFor maps a scope to the innertube browse id of its video list. A
// channel's uploads live in the auto-generated playlist whose id swaps the
// channel prefix UC for UU.
func browseIDFor(scope *domain.Scope) (string, error) {
	switch scope.Type {
	case domain.ScopePlaylist:
		return "VL" + scope.ID, nil
	case domain.ScopeChannel:
		id := scope.ID
		if strings.HasPrefix(id, "UC") {
			id = "UU" + id[2:]
		}
		return "VL" + id, nil
	default:
		return "", fmt.Errorf("scope %s has no browsable video list", scope)
	}
}

func (c *Client) refresh(ctx context.Context, browseID string, pl *playlist.Playlist) error {
	data, err := c.post(ctx, browseURL, map[string]any{
		"browseId": browseID,
		"context":  clientContext(),
	})
	if err != nil {
		return fmt.Errorf("browse %s: %w", browseID, err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("parse browse %s: %w", browseID, err)
	}

	c.mergeBrowse(pl, generic)
	return nil
}

// mergeBrowse folds a browse response into the playlist cache: the title,
// newly discovered videos (appended unindexed, sharded by list position) and
// re-index flags for videos whose title changed upstream.
func (c *Client) mergeBrowse(pl *playlist.Playlist, generic map[string]any) {
	if title, _ := dig(generic, "metadata", "playlistMetadataRenderer", "title").(string); title != "" {
		pl.SetTitle(title)
	}

	position := len(pl.GetVideos())
	for _, item := range playlistItems(generic) {
		id, _ := item["videoId"].(string)
		if id == "" {
			continue
		}
		title := runText(item, "title")
		if known := pl.Get(id); known != nil {
			if title != "" && known.Title != title {
				// Changed upstream: flag for re-indexing.
				changed := *known
				changed.Title = title
				changed.Unindexed = true
				pl.Update(&changed)
			}
			continue
		}
		shardSize := c.shardSize
		if shardSize <= 0 {
			shardSize = 1
		}
		pl.Update(&domain.Video{
			ID:          id,
			Title:       title,
			ShardNumber: position / shardSize,
			Unindexed:   true,
		})
		position++
	}

	pl.SetRefreshed(time.Now())
}

// playlistItems walks the browse response down to the playlist's video
// renderers, tolerating missing levels.
func playlistItems(obj map[string]any) []map[string]any {
	tabs, _ := dig(obj, "contents", "twoColumnBrowseResultsRenderer", "tabs").([]any)
	var out []map[string]any
	for _, tab := range tabs {
		sections, _ := dig(tab, "tabRenderer", "content", "sectionListRenderer", "contents").([]any)
		for _, section := range sections {
			items, _ := dig(section, "itemSectionRenderer", "contents", 0, "playlistVideoListRenderer", "contents").([]any)
			for _, item := range items {
				if pvr, ok := dig(item, "playlistVideoRenderer").(map[string]any); ok {
					out = append(out, pvr)
				}
			}
		}
	}
	return out
}

// runText extracts the first text run of a renderer field.
func runText(obj map[string]any, field string) string {
	if s, ok := dig(obj, field, "simpleText").(string); ok && s != "" {
		return s
	}
	s, _ := dig(obj, field, "runs", 0, "text").(string)
	return s
}

// dig walks nested maps and slices by string keys and integer indexes,
// returning nil as soon as a level is missing.
func dig(obj any, path ...any) any {
	cur := obj
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		case int:
			s, ok := cur.([]any)
			if !ok || key < 0 || key >= len(s) {
				return nil
			}
			cur = s[key]
		default:
			return nil
		}
	}
	return cur
}
