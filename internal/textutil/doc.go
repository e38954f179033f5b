// Package textutil normalizes free text coming back from the extraction
// service into values that are safe to use as file and folder names.
package textutil
