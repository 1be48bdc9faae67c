package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"
	"unsafe"

	"github.com/i5heu/GoRingBench/internal/node"
	"github.com/i5heu/GoRingBench/internal/testbench"
	"github.com/i5heu/GoRingBench/pkg/alloc"
	"github.com/i5heu/GoRingBench/pkg/chanring"
	"github.com/i5heu/GoRingBench/pkg/config"
	"github.com/i5heu/GoRingBench/pkg/ring"
	"github.com/i5heu/GoRingBench/pkg/ringbuffer"
	"github.com/i5heu/GoRingBench/pkg/ringdeque"
	"github.com/i5heu/GoRingBench/pkg/ringlist"
	"github.com/i5heu/GoRingBench/pkg/ringlistfixed"
	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	modeFillDrain = "fill-drain"
	modeTimed     = "timed"
)

// BenchmarkResult holds results for one test run.
type BenchmarkResult struct {
	Implementation string  `json:"implementation"`
	Mode           string  `json:"mode"`
	Capacity       int     `json:"capacity"`
	NumProducers   int     `json:"num_producers,omitempty"`
	NumConsumers   int     `json:"num_consumers,omitempty"`
	Operations     int64   `json:"operations"`        // enqueues + dequeues
	Evicted        int64   `json:"evicted,omitempty"` // timed runs only
	TestDuration   string  `json:"test_duration,omitempty"`
	ActualElapsed  string  `json:"actual_elapsed"`
	NsPerOp        float64 `json:"ns_per_op"`
	Throughput     float64 `json:"throughput_ops_sec"`
	Timestamp      int64   `json:"timestamp"`
	GoVersion      string  `json:"go_version"`
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU      int     `json:"num_cpu"`
	CPUModel    string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH      string  `json:"go_arch"`
	TotalMemory uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// Implementation represents a ring implementation.
type Implementation[T any] struct {
	name        string
	description string
	pkgName     string
	authors     []string
	features    []string
	newRing     func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error)
}

func (impl Implementation[T]) hasFeature(feature string) bool {
	return slices.Contains(impl.features, feature)
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) error {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		return fmt.Errorf("read JSON file %q: %w", jsonFile, err)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found in %q", jsonFile)
	}
	fmt.Print(markdownTable(sessions[len(sessions)-1]))
	return nil
}

// markdownTable renders the fill-drain results of one session, fastest first.
func markdownTable(session FullReport) string {
	meta := make(map[string]Implementation[*int])
	for _, impl := range getImplementations[*int]() {
		meta[impl.name] = impl
	}

	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		author         string
		capacity       int
		nsPerOp        float64
	}
	var rows []tableRow
	for _, bench := range session.Benchmarks {
		if bench.Mode != modeFillDrain {
			continue
		}
		m := meta[bench.Implementation]
		rows = append(rows, tableRow{
			implementation: bench.Implementation,
			pkgName:        m.pkgName,
			features:       strings.Join(m.features, ", "),
			author:         strings.Join(m.authors, ", "),
			capacity:       bench.Capacity,
			nsPerOp:        bench.NsPerOp,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].capacity != rows[j].capacity {
			return rows[i].capacity < rows[j].capacity
		}
		return rows[i].nsPerOp < rows[j].nsPerOp
	})

	var sb strings.Builder
	sb.WriteString("## Last Session Benchmark Summary\n\n")
	sb.WriteString("| Implementation   | Package         | Features                              | Author                             | Capacity | ns/op   |\n")
	sb.WriteString("|------------------|-----------------|---------------------------------------|------------------------------------|----------|---------|\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "| %-16s | %-15s | %-37s | %-34s | %8d | %7.2f |\n",
			r.implementation, r.pkgName, r.features, r.author, r.capacity, r.nsPerOp)
	}
	return sb.String()
}

func main() {
	configPath := flag.String("config", "", "YAML file with the benchmark session (defaults apply when empty)")
	iterations := flag.Int("iter", 0, "Fill/drain iterations per capacity; overrides the config when non-zero")
	capacity := flag.Int("capacity", 0, "Single capacity to test; overrides the config when non-zero")
	concurrent := flag.Bool("concurrent", false, "Also run the timed producer/consumer benchmark through ring.Locked")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	markdown := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	if *markdown {
		if err := outputMarkdownTable(*jsonFileForMarkdown); err != nil {
			logger.Error("markdown table failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Error("loading config failed", "error", err)
			os.Exit(1)
		}
	}
	if *iterations > 0 {
		cfg.Iterations = *iterations
	}
	if *capacity > 0 {
		cfg.Capacities = []int{*capacity}
	}
	if !*concurrent {
		cfg.Concurrency = nil
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	sysInfo := gatherSystemInfo()
	budget := sessionBudget(cfg, sysInfo, logger)

	impls := selectImplementations(getImplementations[*int](), cfg.Implementations)
	if len(impls) == 0 {
		logger.Error("no implementation matches the configuration", "implementations", cfg.Implementations)
		os.Exit(1)
	}

	total := len(cfg.Capacities) * len(impls) * (1 + len(cfg.Concurrency))
	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	valueGenerator := func(i int) *int {
		v := i
		return &v
	}

	var results []BenchmarkResult
	for _, c := range cfg.Capacities {
		fmt.Printf("\n=============================\n")
		fmt.Printf("capacity = %d\n", c)
		fmt.Printf("=============================\n")

		for _, impl := range impls {
			logger.Debug("benchmarking", "implementation", impl.name, "capacity", c, "description", impl.description)
			runtime.GC()
			r, err := impl.newRing(c, ring.WithAllocator[*int](budget), ring.WithLogger[*int](logger))
			if err != nil {
				logger.Error("constructing ring failed", "implementation", impl.name, "capacity", c, "error", err)
				os.Exit(1)
			}
			res, err := testbench.RunFillDrain(r, cfg.Iterations, valueGenerator)
			if closeRing(r, impl.name, logger) != nil {
				os.Exit(1)
			}
			if err != nil {
				logger.Error("fill/drain run failed", "implementation", impl.name, "error", err)
				os.Exit(1)
			}
			result := newResult(impl.name, modeFillDrain, c, res.Operations, res.Elapsed)
			results = append(results, result)
			fmt.Printf("  %-16s => ops=%d, %.2f ns/op, took=%v\n", impl.name, res.Operations, result.NsPerOp, res.Elapsed)
			advance(bar)

			for _, cc := range cfg.Concurrency {
				r, err := impl.newRing(c, ring.WithAllocator[*int](budget), ring.WithLogger[*int](logger))
				if err != nil {
					logger.Error("constructing ring failed", "implementation", impl.name, "capacity", c, "error", err)
					os.Exit(1)
				}
				tr, err := testbench.RunTimedTest(r, cc, cfg.Duration, valueGenerator)
				if closeRing(r, impl.name, logger) != nil {
					os.Exit(1)
				}
				if err != nil {
					logger.Error("timed run failed", "implementation", impl.name, "error", err)
					os.Exit(1)
				}
				result := newResult(impl.name, modeTimed, c, tr.Produced+tr.Consumed, tr.Elapsed)
				result.NumProducers = cc.NumProducers
				result.NumConsumers = cc.NumConsumers
				result.Evicted = tr.Evicted
				result.TestDuration = cfg.Duration.String()
				results = append(results, result)
				fmt.Printf("  %-16s [p=%d c=%d] => produced=%d, consumed=%d, evicted=%d, %.0f ops/s\n",
					impl.name, cc.NumProducers, cc.NumConsumers, tr.Produced, tr.Consumed, tr.Evicted, result.Throughput)
				advance(bar)
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonExport {
		const filename = "test-results.json"
		report := FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		}
		if err := appendReport(filename, report); err != nil {
			logger.Error("writing results failed", "file", filename, "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// closeRing closes r and logs a failure.
func closeRing[T any](r ring.Ring[T], name string, logger *slog.Logger) error {
	if err := r.Close(); err != nil {
		logger.Error("closing ring failed", "implementation", name, "error", err)
		return err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newResult(name, mode string, capacity int, ops int64, elapsed time.Duration) BenchmarkResult {
	r := BenchmarkResult{
		Implementation: name,
		Mode:           mode,
		Capacity:       capacity,
		Operations:     ops,
		ActualElapsed:  elapsed.String(),
		Timestamp:      time.Now().Unix(),
		GoVersion:      runtime.Version(),
	}
	if ops > 0 {
		r.NsPerOp = float64(elapsed.Nanoseconds()) / float64(ops)
	}
	if elapsed > 0 {
		r.Throughput = float64(ops) / elapsed.Seconds()
	}
	return r
}

func advance(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

// appendReport appends report to the JSON array stored in filename.
func appendReport(filename string, report FullReport) error {
	var previous []FullReport
	if data, err := os.ReadFile(filename); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &previous); err != nil {
			return fmt.Errorf("existing results are not valid JSON: %w", err)
		}
	}
	data, err := json.MarshalIndent(append(previous, report), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// sessionBudget caps the storage a session's rings may hold at a share of
// total memory. One unit is sized as the largest per-element footprint.
func sessionBudget(cfg config.Bench, info SystemInfo, logger *slog.Logger) alloc.Allocator {
	if cfg.MemoryFraction == 0 || info.TotalMemory == 0 {
		return alloc.Unlimited
	}
	unit := uint64(unsafe.Sizeof(node.Node[*int]{}))
	units := uint64(float64(info.TotalMemory)*cfg.MemoryFraction) / unit
	logger.Debug("storage budget", "units", units, "unit_bytes", unit)
	return alloc.NewBudget(int(units))
}

func selectImplementations[T any](all []Implementation[T], names []string) []Implementation[T] {
	if len(names) == 0 {
		return all
	}
	var out []Implementation[T]
	for _, impl := range all {
		if slices.Contains(names, impl.name) || slices.Contains(names, impl.pkgName) {
			out = append(out, impl)
		}
	}
	return out
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// asRing converts a constructor result to ring.Ring[T] without turning a
// failed construction into a non-nil interface holding a nil pointer.
func asRing[T any, R ring.Ring[T]](r R, err error) (ring.Ring[T], error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// getImplementations enumerates our different ring implementations.
func getImplementations[T any]() []Implementation[T] {
	return []Implementation[T]{
		{
			name:        "RingBuffer",
			pkgName:     "ringbuffer",
			description: "Contiguous slot array with head/tail indices modulo capacity.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"FIFO", "Evicting", "Fixed-Storage", "Zero-Alloc"},
			newRing: func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error) {
				return asRing[T](ringbuffer.New[T](capacity, opts...))
			},
		},
		{
			name:        "RingList",
			pkgName:     "ringlist",
			description: "Circular singly-linked list allocating a node per enqueue and dropping one per eviction.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"FIFO", "Evicting", "Dynamic-Storage"},
			newRing: func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error) {
				return asRing[T](ringlist.New[T](capacity, opts...))
			},
		},
		{
			name:        "RingListFixed",
			pkgName:     "ringlistfixed",
			description: "Circular singly-linked list over a node arena allocated once and reused in place.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"FIFO", "Evicting", "Fixed-Storage", "Zero-Alloc"},
			newRing: func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error) {
				return asRing[T](ringlistfixed.New[T](capacity, opts...))
			},
		},
		{
			name:        "RingDeque",
			pkgName:     "ringdeque",
			description: "eapache/queue bounded to maxlen by removing from the front when full.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"FIFO", "Evicting", "Dynamic-Storage"},
			newRing: func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error) {
				return asRing[T](ringdeque.New[T](capacity, opts...))
			},
		},
		{
			name:        "ChanRing",
			pkgName:     "chanring",
			description: "Buffered channel that receives once before sending when full.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"FIFO", "Evicting", "Fixed-Storage"},
			newRing: func(capacity int, opts ...ring.Option[T]) (ring.Ring[T], error) {
				return asRing[T](chanring.New[T](capacity, opts...))
			},
		},
	}
}
