package utils

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value pointed to by ptr, or the zero value.
func Deref[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

func FormatBoolean(yesno bool, yes string, no string) string {
	if yesno {
		return yes
	}
	return no
}
