package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate-dev/capgate/internal/rights"
)

const validDoc = `
version: "1.0.0"
operations:
  - name: write
    args:
      - arg: 0
        rights: [write, seek]
  - name: openat
    creates_handle: true
    args:
      - arg: 0
        rights: [lookup]
      - arg: 0
        rights: [create]
        when: 'len(args) > 2 && args[2] == "create"'
`

func Test_Load_ValidDocument(t *testing.T) {
	table, err := Load(strings.NewReader(validDoc))
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"write", "openat"}, table.Operations())
	assert.Equal(t, "1.0.0", table.Version().String())

	op, ok := table.Lookup("write")
	require.True(t, ok)
	assert.False(t, op.CreatesHandle)

	reqs, err := op.Requirements([]any{3})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 0, reqs[0].Arg)
	assert.Equal(t, rights.Write|rights.Seek, reqs[0].Rights)

	_, ok = table.Lookup("reboot")
	assert.False(t, ok, "unlisted operations are not mediated")
}

func Test_Operation_GuardedRequirements(t *testing.T) {
	table, err := Load(strings.NewReader(validDoc))
	require.NoError(t, err)

	op, ok := table.Lookup("openat")
	require.True(t, ok)
	assert.True(t, op.CreatesHandle)

	// Plain open: only the lookup check is active.
	reqs, err := op.Requirements([]any{3, "sub/file"})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, rights.Lookup, reqs[0].Rights)

	// Create-mode open: the guarded create check activates, in
	// declared order after the unconditional one.
	reqs, err = op.Requirements([]any{3, "sub/file", "create"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, rights.Lookup, reqs[0].Rights)
	assert.Equal(t, rights.Create, reqs[1].Rights)
}

func Test_Load_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "missing version",
			doc:     "operations: []\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "version not semver",
			doc:     "version: \"latest\"\noperations: []\n",
			wantMsg: "not valid semver",
		},
		{
			name:    "unsupported major version",
			doc:     "version: \"2.0.0\"\noperations: []\n",
			wantMsg: "not supported",
		},
		{
			name: "unknown right name",
			doc: `
version: "1.0.0"
operations:
  - name: write
    args:
      - arg: 0
        rights: [levitate]
`,
			wantMsg: "unknown right",
		},
		{
			name: "duplicate operation",
			doc: `
version: "1.0.0"
operations:
  - name: write
    args: [{arg: 0, rights: [write]}]
  - name: write
    args: [{arg: 0, rights: [write]}]
`,
			wantMsg: "duplicate operation",
		},
		{
			name: "negative arg position",
			doc: `
version: "1.0.0"
operations:
  - name: write
    args: [{arg: -1, rights: [write]}]
`,
			wantMsg: "schema validation failed",
		},
		{
			name: "empty rights list",
			doc: `
version: "1.0.0"
operations:
  - name: write
    args: [{arg: 0, rights: []}]
`,
			wantMsg: "schema validation failed",
		},
		{
			name: "guard does not compile",
			doc: `
version: "1.0.0"
operations:
  - name: write
    args:
      - arg: 0
        rights: [write]
        when: 'args[0] +'
`,
			wantMsg: "invalid guard",
		},
		{
			name: "operation name shape",
			doc: `
version: "1.0.0"
operations:
  - name: "Write Stuff"
    args: [{arg: 0, rights: [write]}]
`,
			wantMsg: "schema validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func Test_Default(t *testing.T) {
	table := Default()

	for _, name := range []string{"read", "write", "stat", "openat", "unlinkat", "rename"} {
		_, ok := table.Lookup(name)
		assert.True(t, ok, "default table should mediate %s", name)
	}

	op, _ := table.Lookup("openat")
	assert.True(t, op.CreatesHandle)

	op, _ = table.Lookup("rename")
	reqs, err := op.Requirements([]any{1, "a", 2, "b"})
	require.NoError(t, err)
	require.Len(t, reqs, 2, "rename names two handle arguments")
	assert.Equal(t, 0, reqs[0].Arg)
	assert.Equal(t, 2, reqs[1].Arg)
}
