package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate-dev/capgate/internal/rights"
)

func Test_Derive_WrapsPlainResource(t *testing.T) {
	res := NewResource("data")

	cap, err := Derive(res, rights.Read|rights.Seek)
	require.NoError(t, err)

	assert.Equal(t, rights.Read|rights.Seek, cap.Rights())

	unwrapped, r, ok := Unwrap(cap)
	require.True(t, ok)
	assert.Same(t, res, unwrapped)
	assert.Equal(t, rights.Read|rights.Seek, r)

	// The wrapper holds its own reference.
	assert.Equal(t, int64(2), res.Refs())
	cap.Release()
	assert.Equal(t, int64(1), res.Refs())
}

func Test_Derive_NoStacking(t *testing.T) {
	res := NewResource("data")

	inner, err := Derive(res, rights.Read)
	require.NoError(t, err)

	// Re-wrapping unwraps first: the outer capability points at the
	// plain resource, and its rights replace the inner mask entirely.
	outer, err := Derive(inner, rights.Write)
	require.NoError(t, err)

	unwrapped, r, ok := Unwrap(outer)
	require.True(t, ok)
	assert.Same(t, res, unwrapped)
	assert.Equal(t, rights.Write, r)

	// One reference per wrapper, none stacked.
	assert.Equal(t, int64(3), res.Refs())
	outer.Release()
	inner.Release()
	assert.Equal(t, int64(1), res.Refs())
}

func Test_Derive_DeadResource(t *testing.T) {
	res := NewResource("gone")
	res.Release()

	_, err := Derive(res, rights.Read)
	require.Error(t, err)
}

func Test_Unwrap_PlainResourceIsNotACapability(t *testing.T) {
	res := NewResource("plain")

	_, _, ok := Unwrap(res)
	assert.False(t, ok)
	assert.False(t, IsCapability(res))

	cap, err := Derive(res, rights.None)
	require.NoError(t, err)
	assert.True(t, IsCapability(cap))
}

func Test_Capability_ReleaseBlankIsNoop(t *testing.T) {
	blank := NewBlank()
	assert.Nil(t, blank.Underlying())
	blank.Release()
	blank.Release()
}

func Test_Capability_BindTransfersReference(t *testing.T) {
	res := NewResource("created")
	blank := NewBlank()

	// Bind consumes the caller's reference rather than taking its own.
	blank.Bind(res.Retain(), rights.Lookup)
	assert.Equal(t, int64(2), res.Refs())

	blank.Release()
	assert.Equal(t, int64(1), res.Refs())
}

func Test_Capability_RebindPanics(t *testing.T) {
	res := NewResource("x")
	cap, err := Derive(res, rights.Read)
	require.NoError(t, err)

	assert.Panics(t, func() {
		cap.Bind(res, rights.Write)
	})
}

func Test_Resource_RefCounting(t *testing.T) {
	res := NewResource("r")
	assert.Equal(t, int64(1), res.Refs())

	res.Retain()
	assert.Equal(t, int64(2), res.Refs())

	res.Release()
	res.Release()
	assert.Equal(t, int64(0), res.Refs())

	assert.False(t, res.TryRetain(), "dead resources cannot be revived")
	assert.Panics(t, func() { res.Release() })
	assert.Panics(t, func() { res.Retain() })
}

func Test_Resource_Children(t *testing.T) {
	dir := NewDirectory("root")
	file := NewResource("file")

	require.NoError(t, dir.AddChild(file))
	assert.Same(t, file, dir.Child("file"))
	assert.Nil(t, dir.Child("missing"))

	require.Error(t, dir.AddChild(NewResource("file")), "duplicate names rejected")
	require.Error(t, file.AddChild(NewResource("x")), "leaves hold no children")

	assert.True(t, dir.IsDirectory())
	assert.False(t, file.IsDirectory())
}

func Test_Resource_Data(t *testing.T) {
	res := NewResource("f")
	res.WriteData([]byte("hello"))
	assert.Equal(t, []byte("hello"), res.ReadData())

	got := res.ReadData()
	got[0] = 'X'
	assert.Equal(t, []byte("hello"), res.ReadData(), "reads are copies")
}
