// Package mnist loads the MNIST handwritten digit dataset from IDX
// files, gzipped or plain, and exposes it through the data.Dataset
// interface with the standard normalization applied.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/go-ddp/tensor"
)

const (
	imageMagic = 2051
	labelMagic = 2049

	// ImageRows and ImageCols are the fixed MNIST image dimensions.
	ImageRows = 28
	ImageCols = 28

	// Mean and Std are the dataset statistics used for normalization.
	Mean = 0.1307
	Std  = 0.3081
)

// Standard file names inside the dataset directory.
const (
	TrainImagesFile = "train-images-idx3-ubyte.gz"
	TrainLabelsFile = "train-labels-idx1-ubyte.gz"
	TestImagesFile  = "t10k-images-idx3-ubyte.gz"
	TestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// Dataset holds the raw pixel bytes and labels of one MNIST split.
// Items are normalized to float32 on access.
type Dataset struct {
	pixels []byte // n * rows * cols
	labels []byte
	rows   int
	cols   int
}

// LoadTrain reads the training split from dir.
func LoadTrain(dir string) (*Dataset, error) {
	return load(filepath.Join(dir, TrainImagesFile), filepath.Join(dir, TrainLabelsFile))
}

// LoadTest reads the test split from dir.
func LoadTest(dir string) (*Dataset, error) {
	return load(filepath.Join(dir, TestImagesFile), filepath.Join(dir, TestLabelsFile))
}

func load(imagesPath, labelsPath string) (*Dataset, error) {
	pixels, rows, cols, err := readImages(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("read images %s: %w", imagesPath, err)
	}
	labels, err := readLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", labelsPath, err)
	}
	nImages := len(pixels) / (rows * cols)
	if nImages != len(labels) {
		return nil, fmt.Errorf("image count %d does not match label count %d", nImages, len(labels))
	}
	return &Dataset{pixels: pixels, labels: labels, rows: rows, cols: cols}, nil
}

func (d *Dataset) Len() int {
	return len(d.labels)
}

// Item returns image i as a normalized [1, rows, cols] tensor and its
// digit label.
func (d *Dataset) Item(i int) (*tensor.Tensor, int, error) {
	if i < 0 || i >= len(d.labels) {
		return nil, 0, fmt.Errorf("index %d out of range for dataset of length %d", i, len(d.labels))
	}
	size := d.rows * d.cols
	t := tensor.Zeros([]int{1, d.rows, d.cols})
	raw := d.pixels[i*size : (i+1)*size]
	for j, p := range raw {
		t.Data[j] = (float32(p)/255 - Mean) / Std
	}
	return t, int(d.labels[i]), nil
}

// open returns a reader for path, transparently decompressing .gz
// files. The caller must close the returned closer.
func open(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return gz, multiCloser{gz, f}, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func readImages(path string) (pixels []byte, rows, cols int, err error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closer.Close()

	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("read header: %w", err)
		}
	}
	if header[0] != imageMagic {
		return nil, 0, 0, fmt.Errorf("bad image magic %d, want %d", header[0], imageMagic)
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows <= 0 || cols <= 0 || count < 0 {
		return nil, 0, 0, fmt.Errorf("invalid image dimensions %dx%dx%d", count, rows, cols)
	}

	pixels = make([]byte, count*rows*cols)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, 0, 0, fmt.Errorf("read pixel data: %w", err)
	}
	return pixels, rows, cols, nil
}

func readLabels(path string) ([]byte, error) {
	r, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var header [2]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	if header[0] != labelMagic {
		return nil, fmt.Errorf("bad label magic %d, want %d", header[0], labelMagic)
	}

	labels := make([]byte, int(header[1]))
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read label data: %w", err)
	}
	for i, l := range labels {
		if l > 9 {
			return nil, fmt.Errorf("label %d at index %d out of range", l, i)
		}
	}
	return labels, nil
}
