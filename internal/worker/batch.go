package worker

// BatchSize implements spec §4.8's streaming-mode batch sizing for large
// collections: min(available_mem_mb/20, cores*15), clamped to [50,500],
// halved under memory pressure and again for very large collections.
func BatchSize(availableMemMB, cores, totalItems int, swapInUse bool) int {
	if cores < 1 {
		cores = 1
	}
	byMem := availableMemMB / 20
	byCores := cores * 15
	size := byMem
	if byCores < size {
		size = byCores
	}

	switch {
	case size < 50:
		size = 50
	case size > 500:
		size = 500
	}

	if swapInUse {
		size /= 2
	}
	if totalItems > 10000 {
		size /= 2
	}
	if size < 1 {
		size = 1
	}
	return size
}

// StreamingThreshold is the default LARGE_COLLECTION_THRESHOLD (spec
// §4.8): collections above this size switch from one-shot scheduling to
// batch-and-checkpoint streaming.
const StreamingThreshold = 1000
