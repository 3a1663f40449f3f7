package app

const (
	Name           = "mesh2aprs"
	SourceURL      = "https://git.skobk.in/skobkin/mesh2aprs"
	ConfigFilename = "config.json"
)
