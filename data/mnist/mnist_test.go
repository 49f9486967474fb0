package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeIDX writes a gzipped IDX file with the given header words and
// payload.
func writeIDX(t *testing.T, path string, header []uint32, payload []byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	for _, word := range header {
		if err := binary.Write(gz, binary.BigEndian, word); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	if _, err := gz.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
}

// writeSplit creates a miniature train split in dir with n images whose
// pixels are all value and whose labels cycle 0..9.
func writeSplit(t *testing.T, dir string, n int, value byte) {
	t.Helper()
	pixels := make([]byte, n*ImageRows*ImageCols)
	for i := range pixels {
		pixels[i] = value
	}
	labels := make([]byte, n)
	for i := range labels {
		labels[i] = byte(i % 10)
	}
	writeIDX(t, filepath.Join(dir, TrainImagesFile),
		[]uint32{imageMagic, uint32(n), ImageRows, ImageCols}, pixels)
	writeIDX(t, filepath.Join(dir, TrainLabelsFile),
		[]uint32{labelMagic, uint32(n)}, labels)
}

func TestLoadTrain(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, 12, 255)

	ds, err := LoadTrain(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 12 {
		t.Fatalf("len = %d, want 12", ds.Len())
	}

	img, label, err := ds.Item(3)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if label != 3 {
		t.Errorf("label = %d, want 3", label)
	}
	if len(img.Shape) != 3 || img.Shape[0] != 1 || img.Shape[1] != ImageRows || img.Shape[2] != ImageCols {
		t.Errorf("shape = %v, want [1 %d %d]", img.Shape, ImageRows, ImageCols)
	}
	// Pixel 255 normalizes to (1 - mean) / std.
	want := (1 - float32(Mean)) / float32(Std)
	if math.Abs(float64(img.Data[0]-want)) > 1e-6 {
		t.Errorf("normalized pixel = %v, want %v", img.Data[0], want)
	}
}

func TestItemOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, 2, 0)
	ds, err := LoadTrain(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := ds.Item(2); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, TrainImagesFile),
		[]uint32{1234, 1, ImageRows, ImageCols}, make([]byte, ImageRows*ImageCols))
	writeIDX(t, filepath.Join(dir, TrainLabelsFile),
		[]uint32{labelMagic, 1}, []byte{0})
	if _, err := LoadTrain(dir); err == nil {
		t.Error("expected error for bad image magic")
	}
}

func TestCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, TrainImagesFile),
		[]uint32{imageMagic, 2, ImageRows, ImageCols}, make([]byte, 2*ImageRows*ImageCols))
	writeIDX(t, filepath.Join(dir, TrainLabelsFile),
		[]uint32{labelMagic, 3}, []byte{0, 1, 2})
	if _, err := LoadTrain(dir); err == nil {
		t.Error("expected error for image/label count mismatch")
	}
}

func TestLabelOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, TrainImagesFile),
		[]uint32{imageMagic, 1, ImageRows, ImageCols}, make([]byte, ImageRows*ImageCols))
	writeIDX(t, filepath.Join(dir, TrainLabelsFile),
		[]uint32{labelMagic, 1}, []byte{11})
	if _, err := LoadTrain(dir); err == nil {
		t.Error("expected error for label > 9")
	}
}

func TestTruncatedPixels(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, TrainImagesFile),
		[]uint32{imageMagic, 2, ImageRows, ImageCols}, make([]byte, ImageRows*ImageCols)) // one image short
	writeIDX(t, filepath.Join(dir, TrainLabelsFile),
		[]uint32{labelMagic, 2}, []byte{0, 1})
	if _, err := LoadTrain(dir); err == nil {
		t.Error("expected error for truncated pixel data")
	}
}
