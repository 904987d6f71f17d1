package rights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Rights_Contains(t *testing.T) {
	tests := []struct {
		name string
		have Rights
		need Rights
		want bool
	}{
		{
			name: "exact match",
			have: Read | Write,
			need: Read | Write,
			want: true,
		},
		{
			name: "superset",
			have: Read | Write | Seek,
			need: Write,
			want: true,
		},
		{
			name: "missing one bit",
			have: Read,
			need: Read | Write,
			want: false,
		},
		{
			name: "unrestricted holds everything",
			have: All,
			need: Read | Write | Seek | Lookup | Create,
			want: true,
		},
		{
			name: "none needs nothing",
			have: None,
			need: None,
			want: true,
		},
		{
			name: "none holds nothing",
			have: None,
			need: Read,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.have.Contains(tt.need))
		})
	}
}

func Test_Rights_Intersect(t *testing.T) {
	assert.Equal(t, Read, (Read | Write).Intersect(Read|Seek))
	assert.Equal(t, None, Read.Intersect(Write))

	// Intersection never widens.
	narrow := Read | Lookup
	assert.True(t, narrow.Contains(All.Intersect(narrow)))
	assert.Equal(t, narrow, All.Intersect(narrow))
}

func Test_Rights_Union(t *testing.T) {
	assert.Equal(t, Read|Write, Read.Union(Write))
	assert.Equal(t, All, All.Union(Read))
}

func Test_Rights_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "all", All.String())
	assert.Equal(t, "read|write", (Read | Write).String())
	assert.Equal(t, "read|lookup", (Lookup | Read).String(), "order is stable regardless of bit order")
}

func Test_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    Rights
		wantErr bool
	}{
		{
			name:  "single right",
			input: []string{"read"},
			want:  Read,
		},
		{
			name:  "multiple rights",
			input: []string{"write", "seek"},
			want:  Write | Seek,
		},
		{
			name:  "all keyword",
			input: []string{"all"},
			want:  All,
		},
		{
			name:  "case insensitive",
			input: []string{"READ", "Lookup"},
			want:  Read | Lookup,
		},
		{
			name:  "empty list grants nothing",
			input: nil,
			want:  None,
		},
		{
			name:    "unknown right",
			input:   []string{"read", "teleport"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
