package contract

import (
	"reflect"
	"testing"
)

func TestExtractPromptIndexing(t *testing.T) {
	indexing := ExtractPromptIndexing("Use [Reference] with [Source 0] and [Source 5]", 2)

	if !indexing.UsesReference {
		t.Fatalf("usesReference = false, want true")
	}
	if !reflect.DeepEqual(indexing.SourceIndexes, []int{0, 5}) {
		t.Fatalf("sourceIndexes = %v, want [0 5]", indexing.SourceIndexes)
	}
	if !reflect.DeepEqual(indexing.OutOfRange, []int{5}) {
		t.Fatalf("outOfRange = %v, want [5]", indexing.OutOfRange)
	}
}

func TestExtractPromptIndexingCaseInsensitive(t *testing.T) {
	indexing := ExtractPromptIndexing("use [reference] and [SOURCE 1]", 2)
	if !indexing.UsesReference {
		t.Fatalf("usesReference = false, want true")
	}
	if !reflect.DeepEqual(indexing.SourceIndexes, []int{1}) {
		t.Fatalf("sourceIndexes = %v, want [1]", indexing.SourceIndexes)
	}
	if len(indexing.OutOfRange) != 0 {
		t.Fatalf("outOfRange = %v, want empty", indexing.OutOfRange)
	}
}

func TestExtractPromptIndexingNoMarkers(t *testing.T) {
	indexing := ExtractPromptIndexing("plain prompt without markers", 3)
	if indexing.UsesReference {
		t.Fatalf("usesReference = true, want false")
	}
	if len(indexing.SourceIndexes) != 0 || len(indexing.OutOfRange) != 0 {
		t.Fatalf("unexpected indexes: %+v", indexing)
	}
}

func TestExtractPromptIndexingDeduplicates(t *testing.T) {
	indexing := ExtractPromptIndexing("[Source 0] again [Source 0] and [Source 2]", 1)
	if !reflect.DeepEqual(indexing.SourceIndexes, []int{0, 2}) {
		t.Fatalf("sourceIndexes = %v, want [0 2]", indexing.SourceIndexes)
	}
	if !reflect.DeepEqual(indexing.OutOfRange, []int{2}) {
		t.Fatalf("outOfRange = %v, want [2]", indexing.OutOfRange)
	}
}
