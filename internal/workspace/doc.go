// Package workspace manages scratch and persistent directories for
// configuration builds.
//
// Ephemeral mode creates a unique timestamped directory per build (e.g.
// doxysite-20260825-101502-3912) that is removed on Cleanup, suitable for
// daemon jobs that must not see each other's extraction output.
//
// Persistent mode uses a fixed directory (e.g. .doxysite/workspace) that
// survives across builds so fetched source checkouts can be pulled
// incrementally instead of recloned.
package workspace
