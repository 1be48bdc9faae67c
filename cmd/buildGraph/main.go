package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BenchmarkResult is the subset of a cmd/bench result the graphs need.
type BenchmarkResult struct {
	Implementation string  `json:"implementation"`
	Mode           string  `json:"mode"`
	Capacity       int     `json:"capacity"`
	NumProducers   int     `json:"num_producers,omitempty"`
	NumConsumers   int     `json:"num_consumers,omitempty"`
	Operations     int64   `json:"operations"`
	NsPerOp        float64 `json:"ns_per_op"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU   int    `json:"num_cpu"`
	CPUModel string `json:"cpu_model,omitempty"`
	GOARCH   string `json:"go_arch"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels for capacity.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// groupKey identifies one graph: a benchmark mode on a given CPU count.
type groupKey struct {
	mode string
	cpus int
}

// collect groups ns/op samples by graph, implementation and capacity.
func collect(sessions []FullReport) map[groupKey]map[string]map[float64][]float64 {
	groups := make(map[groupKey]map[string]map[float64][]float64)
	for _, session := range sessions {
		for _, b := range session.Benchmarks {
			if b.NsPerOp <= 0 || b.Operations == 0 {
				continue
			}
			key := groupKey{mode: b.Mode, cpus: session.SystemInfo.NumCPU}
			if _, ok := groups[key]; !ok {
				groups[key] = make(map[string]map[float64][]float64)
			}
			name := b.Implementation
			if b.NumProducers+b.NumConsumers > 0 {
				name = fmt.Sprintf("%s p%d/c%d", b.Implementation, b.NumProducers, b.NumConsumers)
			}
			implMap := groups[key]
			if _, ok := implMap[name]; !ok {
				implMap[name] = make(map[float64][]float64)
			}
			x := float64(b.Capacity)
			implMap[name][x] = append(implMap[name][x], b.NsPerOp)
		}
	}
	return groups
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		logger.Error("reading JSON file failed", "file", *jsonFile, "error", err)
		os.Exit(1)
	}

	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		logger.Error("unmarshalling JSON failed", "file", *jsonFile, "error", err)
		os.Exit(1)
	}

	for key, implMap := range collect(sessions) {
		p := newPlot(key)
		addSeries(p, implMap, logger)

		filename := fmt.Sprintf("%s_%s_%d.png", *outputPrefix, key.mode, key.cpus)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			logger.Error("saving plot failed", "file", filename, "error", err)
			continue
		}
		fmt.Printf("Graph for %s on %d CPU(s) saved to %s\n", key.mode, key.cpus, filename)
	}
}

func newPlot(key groupKey) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (5%%-avg-min / Median / 5%%-avg-max) vs. Capacity for %d CPU(s)", key.mode, key.cpus)
	p.X.Label.Text = "Capacity"
	p.Y.Label.Text = "Time per Op (ns) [log scale]"
	p.Y.Scale = plot.LogScale{}

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Y.Tick.Marker = plot.TickerFunc(denseLogTicks)
	p.Add(plotter.NewGrid())
	return p
}

// denseLogTicks spaces roughly one labelled tick per 30px of a 9 inch plot.
func denseLogTicks(min, max float64) []plot.Tick {
	const pxHeight = 648.0
	const pxSpacing = 30.0
	nTicks := pxHeight / pxSpacing

	if min <= 0 {
		min = 1e-9
	}
	start := math.Log10(min)
	end := math.Log10(max)
	step := (end - start) / nTicks

	var ticks []plot.Tick
	for i := 0.0; i <= nTicks; i++ {
		y := math.Pow(10, start+i*step)
		ticks = append(ticks, plot.Tick{Value: y, Label: formatNs(y)})
	}
	return ticks
}

// addSeries draws one line with error bars per implementation.
func addSeries(p *plot.Plot, implMap map[string]map[float64][]float64, logger *slog.Logger) {
	capSet := make(map[float64]struct{})
	for _, implData := range implMap {
		for c := range implData {
			capSet[c] = struct{}{}
		}
	}
	var capValues []float64
	for c := range capSet {
		capValues = append(capValues, c)
	}
	sort.Float64s(capValues)

	// Map capacity => category index.
	capMapping := make(map[float64]float64)
	var positions []float64
	var labels []string
	for i, val := range capValues {
		capMapping[val] = float64(i)
		positions = append(positions, float64(i))
		labels = append(labels, strconv.FormatFloat(val, 'f', -1, 64))
	}
	p.X.Tick.Marker = categoryTicks{positions: positions, labels: labels}

	// Sort implementations alphabetically for consistent legend ordering.
	var implNames []string
	for implName := range implMap {
		implNames = append(implNames, implName)
	}
	sort.Strings(implNames)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Slight offset so each implementation is visually separated.
	offsetRange := 0.4
	offsetStep := offsetRange / float64(len(implNames))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, impl := range implNames {
		stats := buildStats(implMap[impl])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].x = capMapping[stats[j].capacity] + startOffset + float64(i)*offsetStep
		}
		sort.Slice(stats, func(a, b int) bool { return stats[a].x < stats[b].x })
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			logger.Warn("creating line failed", "implementation", impl, "error", err)
			continue
		}
		line.Color = colors[i%len(colors)]

		points, err := plotter.NewScatter(sp)
		if err != nil {
			logger.Warn("creating scatter failed", "implementation", impl, "error", err)
			continue
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = colors[i%len(colors)]
		points.Shape = shapes[i%len(shapes)]

		yErrBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			logger.Warn("creating error bars failed", "implementation", impl, "error", err)
			continue
		}
		yErrBars.Color = colors[i%len(colors)]

		p.Add(line, points, yErrBars)
		p.Legend.Add(impl, line, points)
	}
}
