// Package middleware contains the downloader middleware that can be enabled by
// name from configuration: user_agent, proxy, headers, decompress and print.
package middleware
