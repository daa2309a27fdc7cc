package oplog

import "reflect"

// composeAttributes layers b over a. Keys present in b win. A nil value in b
// clears the key when the underlying op retains base content (keepNil false
// drops the key entirely, used when the result is an insert, because inserts
// carry no formatting to clear).
func composeAttributes(a, b map[string]any, keepNil bool) map[string]any {
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	if !keepNil {
		for k, v := range merged {
			if v == nil {
				delete(merged, k)
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func attributesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || reflect.DeepEqual(a, b)
}
