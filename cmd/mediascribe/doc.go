// Command mediascribe runs the media transcription and scraping HTTP
// service.
package main
