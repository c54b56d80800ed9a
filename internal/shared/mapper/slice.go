// Package mapper holds generic helpers for converting between persistence
// models and domain entities.
package mapper

// MapSliceSkipErrors converts every item with mapFunc. Items that fail to
// convert are handed to onError and left out of the result. A nil input
// yields a nil result.
func MapSliceSkipErrors[T any, R any](items []T, mapFunc func(T) (R, error), onError func(T, error)) []R {
	if items == nil {
		return nil
	}

	result := make([]R, 0, len(items))
	for _, item := range items {
		mapped, err := mapFunc(item)
		if err != nil {
			if onError != nil {
				onError(item, err)
			}
			continue
		}
		result = append(result, mapped)
	}
	return result
}
