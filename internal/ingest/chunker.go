package ingest

// SplitText cuts text into windows of at most `window` runes, advancing by
// `stride` runes each time. With stride < window consecutive chunks overlap.
// Every rune of the input lands in at least one chunk and no chunk exceeds
// the window size. Rune-based slicing keeps multi-byte characters intact.
func SplitText(text string, window, stride int) []string {
	if text == "" {
		return nil
	}
	if window <= 0 {
		window = 1500
	}
	if stride <= 0 || stride > window {
		stride = window
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
