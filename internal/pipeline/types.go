// Package pipeline defines core job types shared across subsystems.
package pipeline

import "time"

// JobKind selects the stage composition for a job.
type JobKind string

// Job kinds accepted by the orchestrator.
const (
	KindTranscribe  JobKind = "transcribe"
	KindScrapeTweet JobKind = "scrape_tweet"
	KindScrapePage  JobKind = "scrape_page"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Job status values tracked in the in-flight registry.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the metadata tracked for each in-flight request execution.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Submitted time.Time `json:"submitted_at"`
}

// TranscribeResult is the terminal output of a transcription job.
type TranscribeResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// TweetResult is the terminal output of a tweet scraping job.
type TweetResult struct {
	VideoURL  string `json:"video_url"`
	TweetText string `json:"tweet_text,omitempty"`
}

// PageResult is the terminal output of a page scraping job.
type PageResult struct {
	Text string `json:"text"`
}
