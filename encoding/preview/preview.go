// Package preview renders the weights of a snapshot as a grayscale image.
//
// Every weight becomes one cell of a near-square grid, scaled from black (the smallest
// weight) to white (the largest). A caption line naming the frame is drawn underneath
// when the image is tall enough.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"sync"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/neuralflow/cache"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"gorgonia.org/vecf32"
)

var regular *truetype.Font

const (
	dpi        = 72.0
	fontsize   = 10.0
	lineheight = 1.2
	padW       = 2
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

// captionHeight is the height in pixels of one line of caption.
var captionHeight = int(math.Ceil(fontsize * lineheight * dpi / 72))

// Encoder renders snapshots as W × H images. It is safe for concurrent use.
type Encoder struct {
	W, H int

	sync.Mutex
	font.Drawer
	face font.Face
}

// NewEncoder creates an encoder of w × h images.
func NewEncoder(w, h int) *Encoder {
	return &Encoder{
		W: w,
		H: h,
		Drawer: font.Drawer{
			Src: image.Black,
		},
	}
}

// Render draws k.
func (enc *Encoder) Render(k *cache.Knowledge) *image.Gray {
	enc.Lock()
	defer enc.Unlock()

	im := image.NewGray(image.Rect(0, 0, enc.W, enc.H))
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)

	gridH := enc.H
	caption := enc.H > 2*captionHeight
	if caption {
		gridH -= captionHeight
	}

	values := k.Values()
	if len(values) > 0 {
		enc.drawGrid(im, values, gridH)
	}
	if caption {
		enc.drawCaption(im, k, values)
	}
	return im
}

func (enc *Encoder) drawGrid(im *image.Gray, values []float32, gridH int) {
	n := len(values)
	cols := int(math32.Ceil(math32.Sqrt(float32(n))))
	rows := (n + cols - 1) / cols
	cellW, cellH := enc.W/cols, gridH/rows
	if cellW < 1 || cellH < 1 {
		cellW, cellH = 1, 1
	}

	lo, hi := vecf32.MinOf(values), vecf32.MaxOf(values)
	grid := make([]float32, rows*cols)
	for i, v := range values {
		if hi > lo {
			grid[i] = (v - lo) / (hi - lo)
		} else {
			grid[i] = 0.5
		}
	}
	for i := n; i < len(grid); i++ {
		grid[i] = 1 // padding cells stay white
	}

	it := MakeIterator(grid, rows, cols)
	defer ReturnIterator(it)
	for r, row := range it {
		for c, v := range row {
			cell := image.Rect(c*cellW, r*cellH, (c+1)*cellW, (r+1)*cellH).Intersect(im.Bounds())
			draw.Draw(im, cell, image.NewUniform(color.Gray{Y: uint8(v * 255)}), image.Point{}, draw.Src)
		}
	}
}

func (enc *Encoder) drawCaption(im *image.Gray, k *cache.Knowledge, values []float32) {
	if enc.face == nil {
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Face = enc.face
	}
	text := fmt.Sprintf("frame %d, %d weights", k.Frame, len(values))
	if len(values) > 0 {
		text += fmt.Sprintf(" [%.3g, %.3g]", vecf32.MinOf(values), vecf32.MaxOf(values))
	}
	enc.Dst = im
	enc.Dot = fixed.P(padW, enc.H-captionHeight/4)
	enc.DrawString(text)
	enc.Dst = nil
}

// Encode writes k as a PNG.
func (enc *Encoder) Encode(w io.Writer, k *cache.Knowledge) error {
	return errors.WithStack(png.Encode(w, enc.Render(k)))
}

// WriteFile writes the PNG preview of k next to its snapshot file.
func (enc *Encoder) WriteFile(k *cache.Knowledge) (err error) {
	if k.File == "" {
		return errors.Errorf("frame %d has no file", k.Frame)
	}
	f, err := os.OpenFile(cache.PreviewPath(k.File), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.WithStack(cerr)
		}
	}()
	return enc.Encode(f, k)
}
