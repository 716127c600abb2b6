package xredis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlot_KnownValues(t *testing.T) {
	assert.Equal(t, 15495, Slot("a"))
	assert.Equal(t, 3300, Slot("b"))
	assert.Equal(t, 12182, Slot("foo"))
	assert.Equal(t, 12739, Slot("123456789"))
	assert.Equal(t, Slot("foo"), Slot("{foo}.bar"))
}

func TestSlot_HashTag(t *testing.T) {
	assert.Equal(t, Slot("user"), Slot("{user}:1"))
	assert.Equal(t, Slot("user"), Slot("prefix:{user}:2"))
	// 空 hashtag 对整个键求值
	assert.Equal(t, 10875, Slot("{}a"))
	// 只取第一个 {...}
	assert.Equal(t, Slot("a"), Slot("{a}{b}"))
}

func TestSameSlot(t *testing.T) {
	assert.True(t, SameSlot())
	assert.True(t, SameSlot("a"))
	assert.True(t, SameSlot("{u}:a", "{u}:b", "{u}:c"))
	assert.False(t, SameSlot("a", "b"))
}

func TestSlot_Range(t *testing.T) {
	for _, k := range []string{"", "a", "{x}", "user:1000", "\xff\xfe"} {
		s := Slot(k)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, SlotCount)
	}
}
