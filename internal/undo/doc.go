// Package undo reverses the moves of a pipeline run using the backups staged
// in .system/trash/<run_id>.
package undo
