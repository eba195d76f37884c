package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		categories []Category
		wantErr    bool
	}{
		{"defaults are valid", DefaultCategories(), false},
		{"empty list rejected", nil, true},
		{"empty id rejected", []Category{{ID: " ", Name: "X"}}, true},
		{"empty name rejected", []Category{{ID: "x", Name: ""}}, true},
		{"duplicate id rejected", []Category{{ID: "x", Name: "A"}, {ID: "x", Name: "B"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.categories)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromJSON(t *testing.T) {
	r, err := FromJSON("")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	r, err = FromJSON(`[{"id":"food","name":"Food Assistance"}]`)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	c, ok := r.Lookup("food")
	assert.True(t, ok)
	assert.Equal(t, "Food Assistance", c.Name)

	_, err = FromJSON(`{"not":"a list"}`)
	assert.Error(t, err)
}
