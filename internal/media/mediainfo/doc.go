// Package mediainfo wraps `mediainfo --Output=JSON`.
//
// MediaInfo reports most fields as strings and changes units between
// releases; Value keeps the raw text and leaves interpretation to callers.
package mediainfo
