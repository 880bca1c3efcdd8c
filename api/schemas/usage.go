package schemas

import "time"

// Endpoint counter names tracked by the usage store.
const (
	CounterPromptEnhancements = "prompt_enhancements"
	CounterImageGenerations   = "image_generations"
	CounterVideoGenerations   = "video_generations"
)

// EndpointUsage is the all-time counter state for one endpoint.
type EndpointUsage struct {
	Count    int64     `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// DailyUsage is one day's rollup of request activity.
type DailyUsage struct {
	Date               string `json:"date"`
	TotalRequests      int64  `json:"total_requests"`
	ImageGenerations   int64  `json:"image_generations"`
	VideoGenerations   int64  `json:"video_generations"`
	PromptEnhancements int64  `json:"prompt_enhancements"`
}

// UsageStats is the aggregate view served by the stats endpoint.
type UsageStats struct {
	Endpoints    map[string]EndpointUsage `json:"endpoint_stats"`
	Today        DailyUsage               `json:"today"`
	LastSevenDay []DailyUsage             `json:"last_7_days"`
	TotalAllTime int64                    `json:"total_all_time"`
	Timestamp    time.Time                `json:"timestamp"`
}
