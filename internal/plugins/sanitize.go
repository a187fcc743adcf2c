package plugins

import "github.com/microcosm-cc/bluemonday"

// fragmentPolicy strips anything a plugin-owned HTML fragment should never
// carry into host chrome: scripts, inline event handlers, and embedded
// frames. It allows the same everyday formatting tags a UGC policy would
// (links, basic structure, images) since a plugin's slot content is meant
// to render inline in the host UI.
var fragmentPolicy = bluemonday.UGCPolicy()

// SanitizeFragment runs a plugin-owned visual fragment through the UGC
// policy before it is stored in the UI registry. Called from C8's
// ui.inject handler so a plugin can never smuggle a script tag into host
// chrome through the capability surface.
func SanitizeFragment(html string) string {
	return fragmentPolicy.Sanitize(html)
}
