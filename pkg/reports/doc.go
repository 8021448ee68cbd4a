// Package reports persists plugin run outcomes.
//
// Every Write produces two new files sharing a {UTC stamp}_{slug} prefix,
// one JSON and one Markdown. Files are created exclusively, so a report is
// never overwritten; a same-second collision gets a -2, -3, ... suffix on the
// slug of both files. Reports are immutable once written and are only
// removed by external housekeeping.
package reports
