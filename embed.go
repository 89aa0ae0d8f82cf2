package touradmin

import "embed"

// EmbeddedAssets contains static assets shipped with the app:
// admin.css and live.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
