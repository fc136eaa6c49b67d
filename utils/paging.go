package utils

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Paging clamps a limit/offset pair to sane bounds.
func Paging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
