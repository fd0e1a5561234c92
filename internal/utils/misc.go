package utils

// Chunks splits s into consecutive slices of at most size elements.
func Chunks[S ~[]E, E any](s S, size int) []S {
	if size <= 0 || len(s) == 0 {
		return nil
	}
	result := make([]S, 0, (len(s)+size-1)/size)
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		result = append(result, s[i:end:end])
	}
	return result
}
