// Package ui styles the short human-readable hints printed to stderr, such as the authorize URL when no browser
// could be opened.
package ui
