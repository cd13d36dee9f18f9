package academic

// Truncate shortens s to n-1 runes followed by "..." when it is longer than n runes.
func Truncate(s *string, n int) string {
	if s == nil {
		return ""
	}
	runes := []rune(*s)
	if len(runes) <= n {
		return *s
	}
	keep := n - 1
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + "..."
}
