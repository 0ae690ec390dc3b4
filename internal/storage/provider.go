package storage

import "clipforge/internal/ports"

// Store is the object storage contract used across the API and pipeline.
// It is an alias to ports.ObjectStore to keep call-sites simple.
type Store = ports.ObjectStore
