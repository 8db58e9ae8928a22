// Package logs reads the JSON log file written next to the console output.
//
// Tail returns the last matching entries of gaapcheck.log, or the entries
// appended after a byte offset, with bounded memory. Follow mode polls the
// file until new matching lines arrive or the wait elapses, so
// `gaapcheck logs --follow` can stream an audit while it runs. Filter narrows
// entries to one document, audit run, request, component or minimum level.
package logs
