// Package review decides whether an extraction result needs a human look.
//
// The policy is pure: it reads the date, amount and confidence of a Result
// and produces the review flag and a comma-separated reason. Missing fields
// cap the confidence at MissingFieldCap; low confidence alone triggers
// review only when no field rule fired. Results synthesized from a parse
// failure are reported as "Parse Error" alone.
package review
