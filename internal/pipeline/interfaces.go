package pipeline

import "time"

// DownloadStage yields the fallback chain that acquires media for a URL
// into destDir. The chain value is the path of the downloaded audio file.
type DownloadStage interface {
	Strategies(url, destDir string) []Strategy[string]
}

// TranscribeStage yields the (single-strategy) chain that turns a media
// file into text plus a detected language.
type TranscribeStage interface {
	Strategies(mediaPath, workDir string) []Strategy[TranscribeResult]
}

// TweetStage yields the chain that resolves a tweet URL to its attached
// video asset, one strategy per available credential.
type TweetStage interface {
	Strategies(tweetURL string) []Strategy[TweetResult]
}

// PageStage yields the chain that extracts cleaned text from a web page.
type PageStage interface {
	Strategies(pageURL string) []Strategy[PageResult]
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
