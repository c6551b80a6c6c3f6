package display

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"

	// Decoders for the output formats the renderer can be asked to write.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	ErrFrameMissing = errors.New("display: output file does not exist yet")
	ErrFrameInvalid = errors.New("display: output file is incomplete or not decodable")
)

// A Decoder reads the frame stored at path.
type Decoder func(path string) (image.Image, error)

// DecodeFile reads an image using the registered image decoders. A missing
// file yields ErrFrameMissing and a truncated or unknown file ErrFrameInvalid.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFrameMissing
		}
		return nil, fmt.Errorf("display: could not open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrFrameInvalid, path, err.Error())
	}
	return img, nil
}
