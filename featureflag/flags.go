package featureflag

type Flag string

const (
	// Publishes a debug frame of the tree and agents after every step.
	FlagVisualize Flag = "VISUALIZE"

	// Clears the tree and inserts every agent again before each step.
	FlagRebuildEveryFrame Flag = "REBUILD_EVERY_FRAME"
)
