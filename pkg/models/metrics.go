package models

// MetricsResponse wraps GET /events/metrics
type MetricsResponse struct {
	Metrics struct {
		TotalUniqueDevices int          `json:"totalUniqueDevices"`
		EventsByType       []EventCount `json:"eventsByType"`
	} `json:"metrics"`
}

type EventCount struct {
	EventName string `json:"eventName"`
	Count     int    `json:"count"`
}

// LogoDetectionStats wraps GET /events/logo-detection
type LogoDetectionStats struct {
	Statistics struct {
		DetectionTypes []DetectionTypeCount `json:"detectionTypes"`
		Channels       []ChannelCount       `json:"channels"`
	} `json:"statistics"`
}

type DetectionTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ChannelCount struct {
	ChannelID string `json:"channelId"`
	Count     int    `json:"count"`
}
