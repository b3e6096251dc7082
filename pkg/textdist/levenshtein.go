// Copyright (c) 2015, Arbo von Monkiewitsch All rights reserved.
// Use of this source code is governed by a BSD-style
// license.

// Package textdist calculates the Levenshtein edit distance between strings.
package textdist

// Distance calculates the Levenshtein distance between two strings: the
// minimum number of single-character insertions, deletions or substitutions
// needed to transform one into the other.
//
// This implementation uses O(min(m,n)) space.
func Distance(str1, str2 string) int {
	s1 := []rune(str1)
	s2 := []rune(str2)

	// The distance is symmetric; size the column by the shorter string.
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}

	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s1)+1)
	for idx := 1; idx <= len(s1); idx++ {
		column[idx] = idx
	}

	for col, s2Rune := range s2 {
		column[0] = col + 1
		lastdiag := col

		for row := range s1 {
			olddiag := column[row+1]

			cost := 0
			if s1[row] != s2Rune {
				cost = 1
			}

			column[row+1] = min(
				column[row+1]+1,
				column[row]+1,
				lastdiag+cost,
			)
			lastdiag = olddiag
		}
	}

	return column[len(s1)]
}
