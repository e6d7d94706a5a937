package dataset

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saugatapaul1010/Vision-OPs/internal/augment"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

const (
	imagesCSV = `Name,Number_HSparrows,Author
a.png,1,alice
b.png,2,bob
c.png,1,carol
d.png,3,alice
`
	boxesCSV = `image_name,bbox_x,bbox_y,bbox_width,bbox_height
a.png,10,20,30,40
a.png,5,5,10,10
b.png,0,0,50,50
`
)

func writeFixtures(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte(imagesCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bboxes.csv"), []byte(boxesCSV), 0o644))
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
		for y := 0; y < 80; y++ {
			for x := 0; x < 100; x++ {
				img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 50, A: 255})
			}
		}
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return dir
}

func loadFixtureIndex(t *testing.T, dir string) *Index {
	t.Helper()
	idx, err := LoadIndex(filepath.Join(dir, "train.csv"), filepath.Join(dir, "bboxes.csv"), entity.FormatCOCO)
	require.NoError(t, err)
	return idx
}

func TestLoadIndex(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)

	require.Equal(t, 4, idx.Len())
	require.Equal(t, "a.png", idx.Images[0].Name)
	require.Equal(t, "alice", idx.Images[0].Fields["Author"])
	require.Len(t, idx.Boxes("a.png"), 2)
	require.Len(t, idx.Boxes("b.png"), 1)
	require.Empty(t, idx.Boxes("c.png"))
}

func TestLoadIndex_UnknownImageInBoxes(t *testing.T) {
	dir := writeFixtures(t)
	bad := boxesCSV + "ghost.png,1,1,2,2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bboxes.csv"), []byte(bad), 0o644))

	_, err := LoadIndex(filepath.Join(dir, "train.csv"), filepath.Join(dir, "bboxes.csv"), entity.FormatCOCO)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost.png")
}

func TestLoadIndex_MissingBoxColumn(t *testing.T) {
	dir := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bboxes.csv"), []byte("image_name,bbox_x\na.png,1\n"), 0o644))

	_, err := LoadIndex(filepath.Join(dir, "train.csv"), filepath.Join(dir, "bboxes.csv"), entity.FormatCOCO)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bbox_y")
}

func TestDataset_GetConvertsToPascalVOC(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)
	ds := NewImageBoxDataset(dir, idx, nil, nil, nil)

	require.Equal(t, 4, ds.Len())
	img, target, err := ds.Get(0)
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 80, img.Bounds().Dy())
	// coco (10,20,30,40) -> pascal_voc (10,20,40,60)
	require.Equal(t, entity.Box{10, 20, 40, 60}, target.Boxes[0])
	require.Equal(t, entity.ForegroundLabel, target.Labels[0])
	require.Len(t, target.Labels, 2)
}

func TestDataset_GetOutOfRange(t *testing.T) {
	dir := writeFixtures(t)
	ds := NewImageBoxDataset(dir, loadFixtureIndex(t, dir), nil, nil, nil)

	_, _, err := ds.Get(4)
	require.Error(t, err)
	_, _, err = ds.Get(-1)
	require.Error(t, err)
}

func TestDataset_AppliesPipeline(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)
	pipeline := augment.NewCompose(0,
		augment.Staged{Transform: augment.SmallestMaxSize{Size: 160}, P: 1},
	)
	ds := NewImageBoxDataset(dir, idx, nil, pipeline, rand.New(rand.NewSource(0)))

	img, target, err := ds.Get(0)
	require.NoError(t, err)
	require.Equal(t, 160, img.Bounds().Dy())
	require.Equal(t, 200, img.Bounds().Dx())
	// рамки промасштабированы вдвое вместе с изображением
	require.Equal(t, entity.Box{20, 40, 80, 120}, target.Boxes[0])
}

func TestDataset_SubsetRows(t *testing.T) {
	dir := writeFixtures(t)
	ds := NewImageBoxDataset(dir, loadFixtureIndex(t, dir), []int{2, 3}, nil, nil)

	require.Equal(t, 2, ds.Len())
	require.Equal(t, "c.png", ds.Name(0))
	require.Equal(t, "d.png", ds.Name(1))
}

func TestStratifiedGroupSplit_GroupsStayTogether(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)

	train, val, err := StratifiedGroupSplit(idx.Images, "Number_HSparrows", "Author", 0.3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, train, 4-len(val))
	require.NotEmpty(t, val)

	side := map[string]string{}
	mark := func(rows []int, name string) {
		for _, i := range rows {
			author := idx.Images[i].Fields["Author"]
			if prev, ok := side[author]; ok {
				require.Equal(t, prev, name, "group %s crosses the split", author)
			}
			side[author] = name
		}
	}
	mark(train, "train")
	mark(val, "val")
}

func TestStratifiedGroupSplit_Deterministic(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)

	trainA, valA, err := StratifiedGroupSplit(idx.Images, "Number_HSparrows", "Author", 0.3, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	trainB, valB, err := StratifiedGroupSplit(idx.Images, "Number_HSparrows", "Author", 0.3, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	require.Equal(t, trainA, trainB)
	require.Equal(t, valA, valB)
}

func TestStratifiedGroupSplit_BadFraction(t *testing.T) {
	dir := writeFixtures(t)
	idx := loadFixtureIndex(t, dir)

	_, _, err := StratifiedGroupSplit(idx.Images, "Number_HSparrows", "Author", 0, rand.New(rand.NewSource(0)))
	require.Error(t, err)
	_, _, err = StratifiedGroupSplit(idx.Images, "Number_HSparrows", "Author", 1, rand.New(rand.NewSource(0)))
	require.Error(t, err)
}
