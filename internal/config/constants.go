package config

import "time"

const (
	// Listing pagination
	ListPageSize = 5

	// Photo limits per submission
	MinPhotos = 1
	MaxPhotos = 10

	// Audience window for "recent" broadcasts
	RecentAudienceWindow = 30 * 24 * time.Hour

	// Broadcast dispatcher poll interval
	DispatchInterval = 15 * time.Second

	// Keyword users type to stop uploading photos
	SkipKeyword = "done"
)
