package utils

// Enum is any int-backed enumeration whose values run from 0 to a known last value.
type Enum interface{ ~int }

func wrapEnum[T Enum](value, last T) T {
	n := last + 1
	return ((value % n) + n) % n
}

// CycleEnumPtr moves *current by step, wrapping within [0, last].
func CycleEnumPtr[T Enum](current *T, step int, last T) {
	*current = wrapEnum(*current+T(step), last)
}

func GetNextEnum[T Enum](current, last T) T {
	return wrapEnum(current+1, last)
}

func GetPrevEnum[T Enum](current, last T) T {
	return wrapEnum(current-1, last)
}
