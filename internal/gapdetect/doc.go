// Package gapdetect lets an optional analyzer amend a composed manifest and
// record coverage concerns.
package gapdetect
