// Package crawler defines the domain types shared by every stage of the crawl:
// requests, responses, records, crawl strategies, the state snapshots that the
// scheduler and downloader broadcast, and the error taxonomy used across the
// pipeline.
package crawler
