package matchmaker

import "driftchat/backend/internal/models"

// Compatible reports whether two language preference lists can share a
// session: either side carries the "any" sentinel (translator mode
// trades strict matching for machine translation at the session layer),
// or the lists intersect.
func Compatible(a, b []string) bool {
	if containsAny(a) || containsAny(b) {
		return true
	}
	for _, lang := range a {
		for _, other := range b {
			if lang == other {
				return true
			}
		}
	}
	return false
}

func containsAny(langs []string) bool {
	for _, lang := range langs {
		if lang == models.LanguageAny {
			return true
		}
	}
	return false
}
