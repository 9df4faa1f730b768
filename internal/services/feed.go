package services

import (
	"fmt"

	"github.com/EatZeBaby/databooks/internal/entity"
)

type FeedItem struct {
	*entity.Event
	HumanText string `json:"human_text"`
}

// HumanText is the one-line description shown next to an event in the feed.
func HumanText(e *entity.Event) string {
	switch e.Type {
	case entity.EventDatasetPublished:
		if name := e.Payload("name"); name != "" {
			return fmt.Sprintf("%s was added", name)
		}
		return "Dataset was added"
	case entity.EventDatasetConnected:
		if platform := e.Payload("platform"); platform != "" {
			return fmt.Sprintf("Connected to %s", platform)
		}
		return "Connected"
	case entity.EventDatasetRefreshed:
		if rows, ok := e.PayloadJSON["delta_rows"]; ok {
			return fmt.Sprintf("Refreshed %v rows", rows)
		}
		return "Refreshed"
	case entity.EventDatasetSchemaChanged:
		return "Schema updated"
	case entity.EventUserFollowed:
		return "New follower"
	case entity.EventDatasetLiked:
		return "New like"
	case entity.EventContractSigned:
		return "Contract signed"
	}
	return string(e.Type)
}

func FeedItems(events []*entity.Event) []FeedItem {
	out := make([]FeedItem, 0, len(events))
	for _, e := range events {
		out = append(out, FeedItem{Event: e, HumanText: HumanText(e)})
	}
	return out
}
