package curves

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/shotboundary/internal/fsutil"
)

var (
	prColor  = color.NRGBA{B: 255, A: 255}
	prFill   = color.NRGBA{B: 255, A: 51}
	rocColor = color.NRGBA{R: 255, G: 165, A: 255}
)

// PNGSink writes each curve to <Dir>/<name>.png.
type PNGSink struct {
	FS     fsutil.FileSystem
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewPNGSink returns a sink producing 6x4.5 inch images.
func NewPNGSink(fsys fsutil.FileSystem, dir string) *PNGSink {
	return &PNGSink{FS: fsys, Dir: dir, Width: 6 * vg.Inch, Height: 4.5 * vg.Inch}
}

// Path returns the image file of a curve.
func (s *PNGSink) Path(c Curve) string {
	return filepath.Join(s.Dir, c.Name+".png")
}

func (s *PNGSink) Draw(c Curve) error {
	if c.Len() == 0 {
		return ErrNoData
	}
	p, err := newPlot(c)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(s.Width, s.Height, "png")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Name, err)
	}
	if err := s.FS.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}
	path := s.Path(c)
	f, err := s.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	_, err = wt.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Printf("Wrote %s (%d points)", path, c.Len())
	return nil
}

func newPlot(c Curve) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel

	line, err := plotter.NewLine(c)
	if err != nil {
		return nil, fmt.Errorf("line %s: %w", c.Name, err)
	}
	line.Width = vg.Points(1)
	if c.StepPost {
		line.StepStyle = plotter.PostStep
		line.Color = prColor
		line.FillColor = prFill
	} else {
		line.Color = rocColor
		p.Legend.Add(c.Series, line)
		p.Legend.Top = true
	}
	p.Add(line)

	// Pin the axes after Add, which widens them to the data range.
	p.X.Min, p.X.Max = 0, c.XMax
	p.Y.Min, p.Y.Max = 0, c.YMax
	return p, nil
}
