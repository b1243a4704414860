// Package sinks contains the record sinks selected by pipeline.sinks. Every
// sink except "log" serializes records as crawler.StoredRecord with a UUID v7
// ID and the crawl time taken from the injected clock.
package sinks
