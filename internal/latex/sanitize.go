// Package latex provides pure helpers to harden and assemble LaTeX sources
// before they are submitted to the PDF compilation service.
//
// Generator-supplied markup is untrusted: a hostile or confused model could
// emit \write18 (the engine's shell-escape trigger) or \input of arbitrary
// files. Sanitize strips both unconditionally; markup must never reach the
// compiler without passing through it.
package latex

import (
	"regexp"
	"strings"
)

var (
	shellEscapeRE = regexp.MustCompile(`\\write18`)
	inputRE       = regexp.MustCompile(`\\input\{.*?\}`)
	docclassRE    = regexp.MustCompile(`\\documentclass\b`)

	// Reserved characters that break plain text dropped into a LaTeX body.
	specialsRE = regexp.MustCompile(`([#%&_{}$])`)
)

// preamble is the fixed document frame used when wrapping bare markup or
// building the plain-text fallback body.
const preamble = `\documentclass[12pt]{article}
\usepackage[utf8]{inputenc}
\usepackage[T1]{fontenc}
\usepackage{lmodern}
\usepackage{amsmath,amssymb}
\usepackage{geometry}
\geometry{margin=2cm}
\begin{document}
`

// Sanitize removes the shell-escape directive and file inclusion commands
// from generator-supplied markup. It is idempotent and never fails.
func Sanitize(s string) string {
	s = shellEscapeRE.ReplaceAllString(s, "")
	s = inputRE.ReplaceAllString(s, "")
	return s
}

// WrapDocument returns s unchanged when it already carries a \documentclass,
// otherwise it embeds s into the standard article frame.
func WrapDocument(s string) string {
	if docclassRE.MatchString(s) {
		return s
	}
	return preamble + s + "\n\\end{document}"
}

// EscapeText escapes LaTeX reserved characters in plain text with a leading
// backslash and converts newlines into explicit paragraph breaks, so that an
// arbitrary answer can be typeset verbatim.
func EscapeText(text string) string {
	safe := specialsRE.ReplaceAllString(text, `\$1`)
	return strings.ReplaceAll(safe, "\n", `\par `)
}

// MinimalDocument builds a complete compilable document directly from plain
// text. It is the last-resort body used when the generator's own markup
// fails to compile.
func MinimalDocument(text string) string {
	return preamble + EscapeText(text) + "\n\\end{document}"
}
