package simulate

// KendallTau compares a learned ranking (best first) with hidden quality.
// It returns a value in [-1, 1]; 1 means the order matches exactly. Names
// without a known quality are ignored. Fewer than two comparable names
// yield 0.
func KendallTau(ranking []string, quality map[string]float64) float64 {
	known := make([]float64, 0, len(ranking))
	for _, name := range ranking {
		if q, ok := quality[name]; ok {
			known = append(known, q)
		}
	}

	var concordant, discordant int
	for i := 0; i < len(known); i++ {
		for j := i + 1; j < len(known); j++ {
			switch {
			case known[i] > known[j]:
				concordant++
			case known[i] < known[j]:
				discordant++
			}
		}
	}
	pairs := concordant + discordant
	if pairs == 0 {
		return 0
	}
	return float64(concordant-discordant) / float64(pairs)
}
