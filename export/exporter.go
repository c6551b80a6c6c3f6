// Package export stages Mitsuba scene descriptions for the renderer.
//
// Translating a host scene graph into Mitsuba XML is outside the scope of
// this package; it accepts scene and material files that have already been
// written by an exporter and places them where a render session expects them.
package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Name of the staged material file referenced by the preview scene.
const MaterialFile = "matpreview_materials.xml"

// Upper bound for staged scene descriptions.
const maxSourceSize = 256 << 20

var (
	ErrMissingSource = errors.New("export: no scene source specified")
	ErrMalformed     = errors.New("export: malformed scene description")
)

type SceneRequest struct {
	// Path or http(s) URL of the scene description.
	Source string

	// Target directory and file name (without the .xml extension).
	Dir  string
	Name string
}

type MaterialRequest struct {
	// Path or http(s) URL of the material description.
	Source string

	// Target directory.
	Dir string
}

// FileExporter copies already exported XML files into place.
type FileExporter struct {
	Client *http.Client
}

func NewFileExporter() *FileExporter {
	return &FileExporter{Client: http.DefaultClient}
}

// Stage a scene description as <Dir>/<Name>.xml and return its path.
func (e *FileExporter) ExportScene(ctx context.Context, req SceneRequest) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("export: missing scene name")
	}
	return e.stage(ctx, req.Source, filepath.Join(req.Dir, req.Name+".xml"))
}

// Stage a material description as <Dir>/matpreview_materials.xml and return its path.
func (e *FileExporter) ExportMaterials(ctx context.Context, req MaterialRequest) (string, error) {
	return e.stage(ctx, req.Source, filepath.Join(req.Dir, MaterialFile))
}

func (e *FileExporter) stage(ctx context.Context, location, target string) (string, error) {
	if location == "" {
		return "", ErrMissingSource
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	src, err := openSource(ctx, client, location)
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSourceSize+1))
	if err != nil {
		return "", fmt.Errorf("export: could not read %s: %w", src.Path(), err)
	}
	if len(data) > maxSourceSize {
		return "", fmt.Errorf("export: %s exceeds %d bytes", src.Path(), maxSourceSize)
	}
	if err = checkWellFormed(data); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrMalformed, src.Path(), err)
	}

	if err = writeAtomic(target, data); err != nil {
		return "", err
	}
	return target, nil
}

// checkWellFormed walks the whole document and requires a root element.
func checkWellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var sawRoot bool
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}

	if !sawRoot {
		return errors.New("no root element")
	}
	return nil
}

// The renderer must never observe a half-written scene file.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("export: could not stage %s: %w", target, err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: could not write %s: %w", target, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("export: could not write %s: %w", target, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("export: could not stage %s: %w", target, err)
	}
	return nil
}
