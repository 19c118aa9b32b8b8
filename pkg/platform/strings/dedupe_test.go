package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "Foo"}, DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  ", "Foo"}))
	assert.Empty(t, DedupeAndTrim(nil))
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t, []string{"pending", "approved"}, DedupeAndTrimLower([]string{" PENDING", "approved", "Pending "}))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"pending", "approved"}, SplitList("pending, Approved,,pending"))
}
