package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "keeps first-seen order", input: []string{"b", "a", "b"}, expected: []string{"b", "a"}},
		{name: "trims and drops blanks", input: []string{"  a ", "", "   ", "a"}, expected: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitList(" kafka-1:9092,kafka-2:9092,,kafka-1:9092 "))
	assert.Empty(t, SplitList(""))
}

func TestSortedUnique(t *testing.T) {
	input := []string{"subject:a@b.com", "nino:RN000004A", "", "nino:RN000004A"}
	assert.Equal(t, []string{"nino:RN000004A", "subject:a@b.com"}, SortedUnique(input))
	assert.Equal(t, "subject:a@b.com", input[0], "input must not be reordered")
}
