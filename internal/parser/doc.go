// Package parser turns fetched responses into follow-up requests and extracted
// records by applying a spider's crawl rules in declaration order.
//
// Rules come in three kinds. FilterURLs narrows the links discovered on the
// page to those matching the rule's condition. PageExtract hands the whole
// page to a callback and emits every returned value as its own record.
// PatternExtract runs only when the page's own URL matches the condition; it
// collects CSS or regex matches and merges the transformed value into a single
// shared record under the rule's field.
package parser
