// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for event
	// photo ingestion. The detection server is the bottleneck, so more
	// workers mostly queue up against it.
	WorkerPoolSize = 8

	// MaxCaptureFrames is the maximum number of frames accepted per live
	// recognition request.
	MaxCaptureFrames = 16
)

// Handler constants
const (
	// DefaultSimilarLimit is the default limit for similarity search results
	DefaultSimilarLimit = 10

	// MaxSimilarLimit caps the requested similarity search result count
	MaxSimilarLimit = 100

	// MaxUploadSize is the maximum request body size in bytes (100MB)
	MaxUploadSize = 100 << 20
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100
)
