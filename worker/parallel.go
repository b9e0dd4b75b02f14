package worker

// ForEach splits data in one chunk per thread and runs fn on every item. A
// nil manager, or a single thread, runs everything on the caller.
func ForEach[T any](tm *ThreadManager, data []T, fn func(item T)) {
	dataSize := len(data)
	if dataSize == 0 {
		return
	}
	if tm == nil || tm.threads == 1 || dataSize == 1 {
		for _, item := range data {
			fn(item)
		}
		return
	}

	chunkSize := (dataSize + tm.threads - 1) / tm.threads
	for start := 0; start < dataSize; start += chunkSize {
		chunk := data[start:min(start+chunkSize, dataSize)]
		tm.AddTask(func(any) {
			for _, item := range chunk {
				fn(item)
			}
		}, nil)
	}
	tm.Execute()
}
