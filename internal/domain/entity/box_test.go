package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBoxFormat(t *testing.T) {
	f, err := ParseBoxFormat("coco")
	require.NoError(t, err)
	require.Equal(t, FormatCOCO, f)

	_, err = ParseBoxFormat("corner_points")
	require.Error(t, err)
}

func TestConvertBox_CocoToPascal(t *testing.T) {
	b, err := ConvertBox(Box{10, 20, 30, 40}, FormatCOCO, FormatPascalVOC)
	require.NoError(t, err)
	require.Equal(t, Box{10, 20, 40, 60}, b)
}

func TestConvertBox_YoloToPascal(t *testing.T) {
	b, err := ConvertBox(Box{50, 50, 20, 10}, FormatYOLO, FormatPascalVOC)
	require.NoError(t, err)
	require.Equal(t, Box{40, 45, 60, 55}, b)
}

func TestConvertBox_RoundTrip(t *testing.T) {
	for _, format := range []BoxFormat{FormatCOCO, FormatYOLO} {
		orig := Box{12.5, 7.25, 31.0, 18.5}
		there, err := ConvertBox(orig, format, FormatPascalVOC)
		require.NoError(t, err)
		back, err := ConvertBox(there, FormatPascalVOC, format)
		require.NoError(t, err)
		for i := range orig {
			require.InDelta(t, orig[i], back[i], 1e-9)
		}
	}
}

func TestBoxIoU(t *testing.T) {
	a := Box{0, 0, 10, 10}
	require.InDelta(t, 1.0, a.IoU(a), 1e-9)

	b := Box{5, 0, 15, 10}
	require.InDelta(t, 50.0/150.0, a.IoU(b), 1e-9)

	c := Box{20, 20, 30, 30}
	require.Equal(t, 0.0, a.IoU(c))
}

func TestBoxArea_Degenerate(t *testing.T) {
	require.Equal(t, 0.0, Box{10, 10, 10, 20}.Area())
	require.Equal(t, 0.0, Box{10, 10, 5, 5}.Area())
}
