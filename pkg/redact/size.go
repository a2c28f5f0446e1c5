package redact

import "github.com/supergoodsystems/pii-scrub/pkg/event"

// Note: this is a naive size of a value, close to its encoded length:
// strings count their bytes, other scalars their text, containers the sum
// of their keys and children
func getSize(v *event.Value) int {
	size := 0
	if v == nil {
		return size
	}
	switch v.Kind {
	case event.KindArray:
		for _, item := range v.Array {
			size += getSize(item)
		}
	case event.KindObject:
		for _, key := range v.Object.Keys() {
			item, _ := v.Object.Get(key)
			size += len(key) + getSize(item)
		}
	default:
		size += len(v.Text())
	}
	return size
}
