package shard

// RequiredWorkers returns how many workers cover count accounts at capacity accounts each
func RequiredWorkers(count, capacity int) int {
	if count <= 0 || capacity <= 0 {
		return 0
	}
	return (count + capacity - 1) / capacity
}

// SliceBounds returns the half-open range of the id-sorted directory that worker index owns
func SliceBounds(index, count, capacity int) (start, end int) {
	start = min(index*capacity, count)
	end = min(start+capacity, count)
	return start, end
}
