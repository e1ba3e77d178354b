package ads

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeAds(n int) []Ad {
	list := make([]Ad, 0, n)
	for i := range n {
		list = append(list, New("https://example.com", fmt.Sprintf("/ad/%d.html", i)))
	}
	return list
}

// TestSplit_EmptyHistory verifies everything is unseen with no history
func TestSplit_EmptyHistory(t *testing.T) {
	list := makeAds(3)

	seen, unseen := Split(list, NewSet())

	assert.Empty(t, seen)
	assert.Equal(t, list, unseen)
}

// TestSplit_NilHistory verifies a nil set behaves like an empty one
func TestSplit_NilHistory(t *testing.T) {
	list := makeAds(2)

	seen, unseen := Split(list, nil)

	assert.Empty(t, seen)
	assert.Len(t, unseen, 2)
}

// TestSplit_PreservesOrder verifies relative order within each partition
func TestSplit_PreservesOrder(t *testing.T) {
	list := makeAds(6)
	history := NewSet(list[1].ID, list[3].ID, list[4].ID)

	seen, unseen := Split(list, history)

	assert.Equal(t, []Ad{list[1], list[3], list[4]}, seen)
	assert.Equal(t, []Ad{list[0], list[2], list[5]}, unseen)
}

// TestSplit_Partitions checks the partition is complete and disjoint for a
// range of history shapes
func TestSplit_Partitions(t *testing.T) {
	list := makeAds(10)
	list = append(list, list[2]) // repeated link on the same page

	for mask := 0; mask < 1<<4; mask++ {
		history := NewSet("not-on-page")
		for bit := range 4 {
			if mask&(1<<bit) != 0 {
				history.Add(list[bit*2].ID)
			}
		}

		seen, unseen := Split(list, history)

		assert.Equal(t, len(list), len(seen)+len(unseen))
		for _, ad := range seen {
			assert.True(t, history.Contains(ad.ID))
		}
		for _, ad := range unseen {
			assert.False(t, history.Contains(ad.ID))
		}
	}
}

// TestUnique_DropsRepeats verifies first occurrence wins
func TestUnique_DropsRepeats(t *testing.T) {
	list := makeAds(3)
	withRepeats := []Ad{list[0], list[1], list[0], list[2], list[1]}

	assert.Equal(t, list, Unique(withRepeats))
	assert.Empty(t, Unique(nil))
}

// TestIDs verifies ids are returned in order
func TestIDs(t *testing.T) {
	list := makeAds(2)

	assert.Equal(t, []string{list[0].ID, list[1].ID}, IDs(list))
}
