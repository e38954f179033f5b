// Package main hosts the coworker CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration and the active workspace,
// then hands off to the internal packages: pipeline runs and fixes, undo,
// export, the catalog and the folder watcher. Commands that only inspect the
// workspace (status, list) never call the inference service.
//
// Keep this package lean: add functionality to the internal packages first
// and surface it through a dedicated command or flag here.
package main
