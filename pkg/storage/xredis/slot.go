package xredis

import (
	"fmt"

	"github.com/mna/redisc"
)

// SlotCount 是集群槽位总数。
const SlotCount = 16384

// Slot 返回键所在的集群槽位（CRC16 取模）。键包含非空 {hashtag} 时只对 hashtag 求值。
func Slot(key string) int {
	return redisc.Slot(key)
}

// SameSlot 报告所有键是否落在同一槽位。
func SameSlot(keys ...string) bool {
	return checkSameSlot(keys) == nil
}

func checkSameSlot(keys []string) error {
	if len(keys) < 2 {
		return nil
	}
	first := Slot(keys[0])
	for _, k := range keys[1:] {
		if s := Slot(k); s != first {
			return fmt.Errorf("key %q hashes to slot %d, key %q to slot %d", keys[0], first, k, s)
		}
	}
	return nil
}
