package domain

import "time"

// SyncStats holds statistics about a sync cycle.
type SyncStats struct {
	CycleID       string        `json:"cycle_id"`
	Feeds         int           `json:"feeds"`
	Refreshed     int           `json:"refreshed"`
	Failed        int           `json:"failed"`
	CarriedOver   int           `json:"carried_over"`
	PersistErrors int           `json:"persist_errors"`
	Articles      int           `json:"articles"`
	FailedSources []string      `json:"failed_sources,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// FeedSummary is the part of a feed sent in sync notifications.
type FeedSummary struct {
	Source       string `json:"source"`
	Title        string `json:"title"`
	ArticleCount int    `json:"article_count"`
	Unread       int    `json:"unread"`
}

// SyncReport describes a finished sync cycle.
type SyncReport struct {
	Stats SyncStats     `json:"stats"`
	Feeds []FeedSummary `json:"feeds"`
}

// NewSyncReport summarizes group under stats.
func NewSyncReport(stats SyncStats, group FeedGroup) *SyncReport {
	report := &SyncReport{
		Stats: stats,
		Feeds: make([]FeedSummary, 0, len(group.Feeds)),
	}
	for _, f := range group.Feeds {
		summary := FeedSummary{
			Source:       f.Source,
			Title:        f.Title,
			ArticleCount: len(f.Articles),
		}
		for _, a := range f.Articles {
			if !a.Read {
				summary.Unread++
			}
		}
		report.Feeds = append(report.Feeds, summary)
	}
	return report
}
