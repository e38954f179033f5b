// Package watch triggers pipeline runs when documents land in the scan
// directory.
//
// Events are filtered to supported document names and debounced so a burst
// of scanner writes produces a single run. Runs never overlap: the trigger
// executes on the event loop and events arriving meanwhile are coalesced
// into the next debounce window.
package watch
