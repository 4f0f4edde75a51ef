package domain

import "errors"

// Error taxonomy for the query and ingestion paths. Platform clients
// return their own typed errors; services wrap them into one of these
// sentinels so handlers can classify with errors.Is.
var (
	// ErrIngestion covers bad upload folders and failed index rebuilds.
	ErrIngestion = errors.New("ingestion failed")

	// ErrIndexUnavailable means the vector collection does not exist.
	// Distinct from an index that exists but matched nothing.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrGeneration covers oracle call failures and malformed
	// structured output.
	ErrGeneration = errors.New("generation failed")

	// ErrRetrieval covers scoring or ordering failures on malformed
	// retrieval metadata.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrUpstreamSearch covers web-search provider failures.
	ErrUpstreamSearch = errors.New("upstream search failed")
)
