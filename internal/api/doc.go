// Package api exposes the HTTP interface for the transcription service.
//
// The typed endpoints (/transcribe, /scrape_tweet, /scrape) accept the
// documented mapping payloads only; their /raw_ counterparts additionally
// tolerate the looser shapes legacy clients send. All endpoints run the
// job synchronously and return its terminal result.
package api
