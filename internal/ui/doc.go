// Package ui holds the color palette shared by the terminal summary and the
// live dashboard. Colors are disabled by --no-color or the NO_COLOR
// environment variable (https://no-color.org/).
package ui
