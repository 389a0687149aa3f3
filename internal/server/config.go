package server

import "github.com/raysh454/lumen/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the history API.
	ListenAddr string
	// ArtifactDir is where screenshots and thumbnails are served from;
	// empty disables /artifacts.
	ArtifactDir string
	Logger      logging.Logger
}
