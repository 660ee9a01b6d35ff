// Package scan turns a media file into a classification.
//
// Service runs every enabled probe adapter with a per-probe timeout,
// normalizes their output into evidence records, and folds the records with
// the classification engine. ScanAll fans out over many files with a bounded
// worker pool. A classification cache, when configured, short-circuits files
// whose identity and inputs are unchanged.
package scan
