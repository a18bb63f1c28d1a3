// Package preflight provides readiness checks for the filesystem paths and
// external services mixcraft depends on.
//
// The daemon runs RunAll before it starts consuming results and refuses to
// start when a check fails. The CLI "mixcraft check" command prints the same
// results as a table.
package preflight
