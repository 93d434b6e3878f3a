package contract

import (
	"regexp"
	"sort"
	"strconv"
)

var (
	referenceMarker = regexp.MustCompile(`(?i)\[reference\]`)
	sourceMarker    = regexp.MustCompile(`(?i)\[source\s+(\d+)\]`)
)

// ExtractPromptIndexing scans a prompt for [Reference] and [Source k]
// markers. sourceCount bounds the out-of-range check. The scan never fails;
// its result only feeds warnings.
func ExtractPromptIndexing(prompt string, sourceCount int) PromptIndexing {
	indexing := PromptIndexing{
		UsesReference: referenceMarker.MatchString(prompt),
		SourceIndexes: []int{},
		OutOfRange:    []int{},
	}

	seen := map[int]struct{}{}
	for _, match := range sourceMarker.FindAllStringSubmatch(prompt, -1) {
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if _, dup := seen[index]; dup {
			continue
		}
		seen[index] = struct{}{}
		indexing.SourceIndexes = append(indexing.SourceIndexes, index)
		if index >= sourceCount {
			indexing.OutOfRange = append(indexing.OutOfRange, index)
		}
	}

	sort.Ints(indexing.SourceIndexes)
	sort.Ints(indexing.OutOfRange)
	return indexing
}
