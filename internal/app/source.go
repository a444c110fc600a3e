package app

import (
	"context"

	"github.com/shpitdev/playlistrank/internal/enrich"
	"github.com/shpitdev/playlistrank/pkg/pipeline/core"
	"github.com/shpitdev/playlistrank/pkg/youtube"
)

// Catalog lists the entries of a playlist.
type Catalog interface {
	PlaylistItems(ctx context.Context, playlistID string, maxResults int) ([]youtube.PlaylistItem, error)
}

// PlaylistSource loads one playlist as enrichment items, in playlist order.
type PlaylistSource struct {
	Catalog    Catalog
	PlaylistID string
	MaxResults int
}

var _ core.Source[enrich.Item] = PlaylistSource{}

func (s PlaylistSource) Load(ctx context.Context) ([]enrich.Item, error) {
	entries, err := s.Catalog.PlaylistItems(ctx, s.PlaylistID, s.MaxResults)
	if err != nil {
		return nil, err
	}
	items := make([]enrich.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, enrich.Item{
			Title:        e.Title,
			VideoID:      e.VideoID,
			ThumbnailURL: e.ThumbnailURL,
		})
	}
	return items, nil
}
