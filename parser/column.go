package parser

// LookupColumn scans a flattened label/value token sequence and returns the
// token that follows the first exact match of label. A label with nothing
// after it counts as absent.
func LookupColumn(tokens []string, label string) (string, bool) {
	for i, token := range tokens {
		if token != label {
			continue
		}
		if i+1 >= len(tokens) {
			return "", false
		}
		return tokens[i+1], true
	}
	return "", false
}
