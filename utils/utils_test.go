package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaging(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, DefaultLimit, 0},
		{"negative offset", 10, -3, 10, 0},
		{"capped", 10000, 20, MaxLimit, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := Paging(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, l)
			assert.Equal(t, tt.wantOffset, o)
		})
	}
}
