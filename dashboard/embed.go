// Package dashboard provides the embedded status page served at "/".
package dashboard

import "embed"

// IndexPath is the location of the dashboard page within Assets.
const IndexPath = "assets/index.html"

// Assets is an embedded filesystem containing the dashboard page.
//
//go:embed assets/*
var Assets embed.FS
