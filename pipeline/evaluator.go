package pipeline

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/linear"
	"github.com/pharmalnet/dti/metrics"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// GraphFile is the file name of the diagnostic scatter plot.
const GraphFile = "graph.png"

// Evaluation is the result of scoring a model on the test partition.
type Evaluation struct {
	metrics.Report
	Actual    []float64
	Predicted []float64
	GraphPath string
}

// Scores returns R2, MSE and Corr.
func (e *Evaluation) Scores() metrics.Report { return e.Report }

// Graph returns the path of the diagnostic image.
func (e *Evaluation) Graph() string { return e.GraphPath }

// Evaluator scores a trained model and renders the actual-vs-predicted plot into Dir.
type Evaluator struct {
	Dir    string
	Logger log.Logger
}

// NewEvaluator returns an Evaluator writing into dir.
func NewEvaluator(dir string) *Evaluator {
	return &Evaluator{Dir: dir, Logger: log.GetLoggerWithName("evaluator")}
}

// Evaluate predicts the test rows and computes R2, MSE and Pearson correlation over the
// normalised labels.
func (e *Evaluator) Evaluate(m dti.Model, test []dataset.Row) (*Evaluation, error) {
	if len(test) == 0 {
		return nil, errors.NewEmptyTestSetError()
	}
	compounds := make([]string, len(test))
	sequences := make([]string, len(test))
	actual := make([]float64, len(test))
	for i, r := range test {
		compounds[i], sequences[i], actual[i] = r.Compound, r.Sequence, r.Normalized
	}
	predicted, err := m.Predict(compounds, sequences, placeholderLabels(len(test)))
	if err != nil {
		return nil, errors.NewInferenceError("predict", err)
	}
	report, err := metrics.Regression(actual, predicted)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create graph directory")
	}
	graphPath := filepath.Join(e.Dir, GraphFile)
	if err := renderScatter(actual, predicted, graphPath); err != nil {
		return nil, err
	}

	e.logger().Info("Evaluation finished",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseTesting,
		log.SamplesKey, len(test),
		log.R2ScoreKey, report.R2,
		log.MSEKey, report.MSE,
		log.CorrKey, report.Corr,
	)
	return &Evaluation{Report: report, Actual: actual, Predicted: predicted, GraphPath: graphPath}, nil
}

func (e *Evaluator) logger() log.Logger {
	if e.Logger == nil {
		return log.GetLoggerWithName("evaluator")
	}
	return e.Logger
}

// renderScatter draws (actual, predicted) points, the least-squares line and a dashed
// y = x diagonal, and saves the plot as PNG.
func renderScatter(actual, predicted []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Actual vs Predicted"
	p.X.Label.Text = "Actual Values (log10 IC50)"
	p.Y.Label.Text = "Predicted Values (log10 IC50)"
	p.Legend.Top = true
	p.Legend.Left = true

	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X, pts[i].Y = actual[i], predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)
	p.Legend.Add("Predictions", scatter)

	// 退化ケース（点が1つ、xが一定）では回帰直線を描かない
	if slope, intercept, err := linear.FitLine(actual, predicted); err == nil {
		xs := []float64{lo, hi}
		fit, err := plotter.NewLine(plotter.XYs{
			{X: xs[0], Y: slope*xs[0] + intercept},
			{X: xs[1], Y: slope*xs[1] + intercept},
		})
		if err != nil {
			return errors.Wrap(err, "best fit line")
		}
		fit.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		fit.LineStyle.Width = vg.Points(1.5)
		p.Add(fit)
		p.Legend.Add("Best Fit Line", fit)
	}

	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "diagonal")
	}
	diag.LineStyle.Color = color.Gray{Y: 96}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(diag)
	p.Legend.Add("y = x", diag)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.NewModelError("Evaluator", "save graph", err)
	}
	return nil
}
