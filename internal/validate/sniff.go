package validate

import (
	"errors"
	"strings"
)

// ErrUndeterminedDelimiter is returned when no candidate delimiter splits
// the sample consistently.
var ErrUndeterminedDelimiter = errors.New("could not determine delimiter")

// Candidates are tried in order; earlier entries win ties.
var delimiterCandidates = []rune{',', ';', '\t', '|', ':'}

const (
	sniffMaxLines       = 50
	sniffMinConsistency = 0.9
)

// SniffDelimiter guesses the delimiter of text. For every candidate it
// counts occurrences outside quotes per line and takes the most common
// non-zero count; the candidate whose count holds on the largest share of
// lines wins. Shares below 90% are not accepted.
func SniffDelimiter(text string) (rune, error) {
	lines := sniffLines(text)
	if len(lines) == 0 {
		return 0, ErrUndeterminedDelimiter
	}

	var (
		best      rune
		bestScore float64
		bestFreq  int
	)
	for _, c := range delimiterCandidates {
		freq, share := modeFrequency(lines, c)
		if freq == 0 || share < sniffMinConsistency {
			continue
		}
		if share > bestScore || (share == bestScore && freq > bestFreq) {
			best, bestScore, bestFreq = c, share, freq
		}
	}
	if best == 0 {
		return 0, ErrUndeterminedDelimiter
	}
	return best, nil
}

func sniffLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == sniffMaxLines {
			break
		}
	}
	return lines
}

// modeFrequency returns the most common per-line count of c and the share
// of lines having it.
func modeFrequency(lines []string, c rune) (int, float64) {
	counts := make(map[int]int)
	for _, l := range lines {
		counts[countUnquoted(l, c)]++
	}
	freq, n := 0, 0
	for f, k := range counts {
		if f == 0 {
			continue
		}
		if k > n || (k == n && f > freq) {
			freq, n = f, k
		}
	}
	return freq, float64(n) / float64(len(lines))
}

func countUnquoted(line string, c rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}
