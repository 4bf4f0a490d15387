package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-netcdf-store/internal/codec"
)

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		val   any
		shape []int64
		typ   codec.Type
	}{
		{"float32x2", [][]float32{{1.5, -2.5, 3}, {4, 5, 6.25}}, []int64{2, 3}, codec.Float32},
		{"int16x1", []int16{-10000, 0, 10000}, []int64{3}, codec.Int16},
		{"uint8x3", [][][]uint8{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}}, []int64{2, 2, 2}, codec.Uint8},
		{"float64x1", []float64{-10.1, 10.1}, []int64{2}, codec.Float64},
		{"int64x2", [][]int64{{1 << 40, -1}, {0, 7}}, []int64{2, 2}, codec.Int64},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, shape, typ, err := codec.Flatten(c.val)
			require.NoError(t, err)
			require.Equal(t, c.shape, shape)
			require.Equal(t, c.typ, typ)

			n := int64(1)
			for _, s := range shape {
				n *= s
			}
			require.Equal(t, n*typ.Size(), int64(len(data)))

			back, err := codec.Unflatten(data, shape, typ)
			require.NoError(t, err)
			require.Equal(t, c.val, back)
		})
	}
}

func TestFlattenRejectsRagged(t *testing.T) {
	_, _, _, err := codec.Flatten([][]float32{{1, 2, 3}, {4}})
	require.ErrorIs(t, err, codec.ErrRagged)
}

func TestFlattenRejectsEmpty(t *testing.T) {
	_, _, _, err := codec.Flatten([][]float32{})
	require.ErrorIs(t, err, codec.ErrShape)
}

func TestFlattenRejectsStrings(t *testing.T) {
	_, _, _, err := codec.Flatten([]string{"ab", "cd"})
	require.ErrorIs(t, err, codec.ErrBadType)
}

func TestFromGoType(t *testing.T) {
	typ, err := codec.FromGoType("float32")
	require.NoError(t, err)
	require.Equal(t, codec.Float32, typ)
	require.Equal(t, int64(4), typ.Size())

	_, err = codec.FromGoType("string")
	require.ErrorIs(t, err, codec.ErrBadType)
}

func TestZarrCodes(t *testing.T) {
	codes := map[codec.Type]string{
		codec.Int8:    "|i1",
		codec.Uint16:  "<u2",
		codec.Int32:   "<i4",
		codec.Float64: "<f8",
	}
	for typ, code := range codes {
		require.Equal(t, code, typ.ZarrCode())
		back, err := codec.FromZarrCode(code)
		require.NoError(t, err)
		require.Equal(t, typ, back)
	}

	_, err := codec.FromZarrCode("<c16")
	require.ErrorIs(t, err, codec.ErrBadType)
}

func TestUnflattenSizeCheck(t *testing.T) {
	_, err := codec.Unflatten(make([]byte, 7), []int64{2}, codec.Float32)
	require.ErrorIs(t, err, codec.ErrShape)
}
