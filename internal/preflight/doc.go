// Package preflight provides readiness checks for the filesystem paths,
// storage backend and model API that gaapcheck depends on.
//
// The CLI "gaapcheck status" command runs RunAll and renders the results;
// "gaapcheck serve" runs the filesystem and storage checks before binding.
package preflight
