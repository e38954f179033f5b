// Package export renders the extract cache into user-facing reports: the
// exports/master.xlsx workbook and the exports/review.csv review queue.
// Reports are rebuilt from scratch on every export and written atomically.
package export
