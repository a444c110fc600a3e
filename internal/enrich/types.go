package enrich

import (
	"context"
	"net/url"
)

// Item is one playlist entry. Identity is VideoID.
type Item struct {
	Title        string
	VideoID      string
	ThumbnailURL string
}

// Record is an Item combined with its resolved view count.
//
// Index is the item's position in the playlist and breaks ranking ties.
type Record struct {
	Index        int    `json:"index"`
	Title        string `json:"title"`
	VideoID      string `json:"video_id"`
	Views        uint64 `json:"views"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Permalink    string `json:"permalink"`
}

// RankedList is a sequence of records ordered by Views descending, then Index ascending.
type RankedList []Record

// ViewCounter resolves the view count of a single video.
type ViewCounter interface {
	ViewCount(ctx context.Context, videoID string) (uint64, error)
}

// ViewCounterFunc adapts a function to the ViewCounter interface.
type ViewCounterFunc func(ctx context.Context, videoID string) (uint64, error)

func (f ViewCounterFunc) ViewCount(ctx context.Context, videoID string) (uint64, error) {
	return f(ctx, videoID)
}

const watchURL = "https://www.youtube.com/watch"

// Permalink returns the watch page URL for a video id.
func Permalink(videoID string) string {
	return watchURL + "?v=" + url.QueryEscape(videoID)
}

// NewRecord combines an item, its playlist position and its view count.
func NewRecord(index int, item Item, views uint64) Record {
	return Record{
		Index:        index,
		Title:        item.Title,
		VideoID:      item.VideoID,
		Views:        views,
		ThumbnailURL: item.ThumbnailURL,
		Permalink:    Permalink(item.VideoID),
	}
}
