package config

const (
	// MaxNodeNameLength is the maximum length for file and folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (names should be short and descriptive).
	MaxNodeNameLength = 255

	// MaxWorkspaceNameLength is the maximum length for workspace names.
	// Same as node names for consistency.
	MaxWorkspaceNameLength = 255

	// DefaultPageSize is the listing page size used when a client does
	// not ask for one. This is also the render-window size: a listing
	// holding this many nodes stops prefetching further pages.
	DefaultPageSize = 25

	// MaxPageSize caps client-requested listing page sizes.
	MaxPageSize = 100
)
