package racers

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveFitnessPlot draws the best and mean fitness of every generation in
// history and writes the chart to path. The image format follows the file
// extension (png, svg, pdf, ...).
func SaveFitnessPlot(history []GenerationStats, path string) error {
	if len(history) == 0 {
		return errors.New("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = "Fitness per generation"
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"
	p.Add(plotter.NewGrid())

	bestPts := make(plotter.XYs, len(history))
	meanPts := make(plotter.XYs, len(history))
	for i, s := range history {
		bestPts[i].X = float64(s.Generation)
		bestPts[i].Y = s.Best
		meanPts[i].X = float64(s.Generation)
		meanPts[i].Y = s.Mean
	}

	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return err
	}
	bestLine.Color = color.RGBA{R: 200, A: 255}
	bestLine.Width = vg.Points(1.5)

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.Color = color.RGBA{B: 200, A: 255}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
