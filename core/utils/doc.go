// Package utils provides small formatting helpers shared by commands.
//
// FormatDuration renders wait times ("3m02s") for rate-limit messages and
// Plural saves the usual "item(s)" dance in summaries.
package utils
