package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListFilter_Normalize(t *testing.T) {
	tests := []struct {
		in         ListFilter
		wantLimit  int
		wantOffset int
	}{
		{ListFilter{}, DefaultPageSize, 0},
		{ListFilter{Limit: 10, Offset: 30}, 10, 30},
		{ListFilter{Limit: 10_000, Offset: -5}, MaxPageSize, 0},
	}
	for _, tt := range tests {
		tt.in.Normalize()
		assert.Equal(t, tt.wantLimit, tt.in.Limit)
		assert.Equal(t, tt.wantOffset, tt.in.Offset)
	}
}

func TestPage_EmptyItemsNotNil(t *testing.T) {
	p := Page[string](ListFilter{Limit: 5, Offset: 10})
	assert.NotNil(t, p.Items)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, 10, p.Offset)
}

func TestHookRegistry_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	veto := errors.New("has history")

	r := NewHookRegistry[*string]()
	r.On(BeforeDelete,
		func(context.Context, *string) error { calls = append(calls, "a"); return nil },
		func(context.Context, *string) error { calls = append(calls, "b"); return veto },
		func(context.Context, *string) error { calls = append(calls, "c"); return nil },
	)

	s := "A1"
	assert.ErrorIs(t, r.Run(context.Background(), BeforeDelete, &s), veto)
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.NoError(t, r.Run(context.Background(), BeforeCreate, &s))
}
