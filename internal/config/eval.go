package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/shotboundary/internal/sbd"
)

// DefaultConfigPath is the example evaluation config shipped with the repo.
const DefaultConfigPath = "config/sbd-eval.example.yaml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Raw-result encodings accepted in path_postfix_raw_results.
const (
	EncodingCSV = "csv"
	EncodingNPY = "npy"
)

// Frame-count sources accepted in frame_count_source.
const (
	FrameCountFFProbe     = "ffprobe"
	FrameCountGroundTruth = "groundtruth"
)

// EvalConfig is the evaluation configuration. Every field is optional in the
// file; the Get* accessors supply defaults for omitted fields. The same
// field names are used for the YAML and JSON encodings.
type EvalConfig struct {
	// Input and output locations
	PathVideos         *string `yaml:"path_videos" json:"path_videos,omitempty"`
	PathGTData         *string `yaml:"path_gt_data" json:"path_gt_data,omitempty"`
	PathRawResultsEval *string `yaml:"path_raw_results_eval" json:"path_raw_results_eval,omitempty"`
	PathEvalResults    *string `yaml:"path_eval_results" json:"path_eval_results,omitempty"`
	PathFinalResults   *string `yaml:"path_final_results" json:"path_final_results,omitempty"`
	ResultsDB          *string `yaml:"results_db" json:"results_db,omitempty"`

	// Raw-result naming
	PathPostfixRawResults *string `yaml:"path_postfix_raw_results" json:"path_postfix_raw_results,omitempty"` // csv or npy
	PathPrefixRawResults  *string `yaml:"path_prefix_raw_results" json:"path_prefix_raw_results,omitempty"`

	// Detection params
	ActivateCandidateSelection *int      `yaml:"activate_candidate_selection" json:"activate_candidate_selection,omitempty"`
	ThresholdMode              *string   `yaml:"threshold_mode" json:"threshold_mode,omitempty"`
	WindowSize                 *int      `yaml:"window_size" json:"window_size,omitempty"`
	AlphaGrid                  []float64 `yaml:"alpha_grid" json:"alpha_grid,omitempty"`
	BetaGrid                   []float64 `yaml:"beta_grid" json:"beta_grid,omitempty"`

	// Video collaborator
	VideoExtension   *string `yaml:"video_extension" json:"video_extension,omitempty"`
	FrameCountSource *string `yaml:"frame_count_source" json:"frame_count_source,omitempty"`
	FFProbePath      *string `yaml:"ffprobe_path" json:"ffprobe_path,omitempty"`

	// Output switches (0/1, as in the historical config files)
	SaveEvalResults  *int `yaml:"save_eval_results" json:"save_eval_results,omitempty"`
	SaveFinalResults *int `yaml:"save_final_results" json:"save_final_results,omitempty"`
	SaveHTMLReport   *int `yaml:"save_html_report" json:"save_html_report,omitempty"`
	DebugFlag        *int `yaml:"debug_flag" json:"debug_flag,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// Load reads an EvalConfig from a .yaml, .yml or .json file and validates it.
// Validation failures wrap sbd.ErrInvalidConfiguration.
func Load(path string) (*EvalConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("config file must have .yaml, .yml or .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Parse decodes data in the encoding implied by ext and validates the result.
func Parse(data []byte, ext string) (*EvalConfig, error) {
	cfg := &EvalConfig{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every set field. It runs before any data file is touched.
func (c *EvalConfig) Validate() error {
	for _, req := range []struct {
		name string
		v    *string
	}{
		{"path_gt_data", c.PathGTData},
		{"path_raw_results_eval", c.PathRawResultsEval},
		{"path_eval_results", c.PathEvalResults},
	} {
		if req.v == nil || *req.v == "" {
			return fmt.Errorf("%w: %s is required", sbd.ErrInvalidConfiguration, req.name)
		}
	}

	switch c.GetPathPostfixRawResults() {
	case EncodingCSV, EncodingNPY:
	default:
		return fmt.Errorf("%w: path_postfix_raw_results must be %q or %q, got %q",
			sbd.ErrInvalidConfiguration, EncodingCSV, EncodingNPY, c.GetPathPostfixRawResults())
	}

	if _, err := sbd.ParseThresholdMode(c.GetThresholdMode()); err != nil {
		return err
	}
	if _, err := sbd.ParseSelectionPolicy(c.GetActivateCandidateSelection()); err != nil {
		return err
	}

	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be >= 1, got %d", sbd.ErrInvalidConfiguration, *c.WindowSize)
	}

	for name, grid := range map[string][]float64{"alpha_grid": c.AlphaGrid, "beta_grid": c.BetaGrid} {
		if grid == nil {
			continue
		}
		if len(grid) == 0 {
			return fmt.Errorf("%w: %s must not be empty", sbd.ErrInvalidConfiguration, name)
		}
		seen := make(map[float64]bool, len(grid))
		for _, v := range grid {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s contains non-finite value %v", sbd.ErrInvalidConfiguration, name, v)
			}
			if seen[v] {
				return fmt.Errorf("%w: %s repeats %v", sbd.ErrInvalidConfiguration, name, v)
			}
			seen[v] = true
		}
	}

	switch c.GetFrameCountSource() {
	case FrameCountFFProbe:
		if c.GetPathVideos() == "" {
			return fmt.Errorf("%w: path_videos is required when frame_count_source is %q",
				sbd.ErrInvalidConfiguration, FrameCountFFProbe)
		}
	case FrameCountGroundTruth:
	default:
		return fmt.Errorf("%w: frame_count_source must be %q or %q, got %q",
			sbd.ErrInvalidConfiguration, FrameCountFFProbe, FrameCountGroundTruth, c.GetFrameCountSource())
	}

	for name, flag := range map[string]*int{
		"save_eval_results":  c.SaveEvalResults,
		"save_final_results": c.SaveFinalResults,
		"save_html_report":   c.SaveHTMLReport,
		"debug_flag":         c.DebugFlag,
	} {
		if flag != nil && *flag != 0 && *flag != 1 {
			return fmt.Errorf("%w: %s must be 0 or 1, got %d", sbd.ErrInvalidConfiguration, name, *flag)
		}
	}
	if c.GetSaveFinalResults() && c.GetPathFinalResults() == "" {
		return fmt.Errorf("%w: path_final_results is required when save_final_results is 1", sbd.ErrInvalidConfiguration)
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetPathVideos returns the video directory, or "" when unset.
func (c *EvalConfig) GetPathVideos() string { return stringOr(c.PathVideos, "") }

// GetPathGTData returns the ground-truth directory.
func (c *EvalConfig) GetPathGTData() string { return stringOr(c.PathGTData, "") }

// GetPathRawResultsEval returns the raw-result directory.
func (c *EvalConfig) GetPathRawResultsEval() string { return stringOr(c.PathRawResultsEval, "") }

// GetPathEvalResults returns the output directory for CSVs and curves.
func (c *EvalConfig) GetPathEvalResults() string { return stringOr(c.PathEvalResults, "") }

// GetPathFinalResults returns the shot-list output directory.
func (c *EvalConfig) GetPathFinalResults() string { return stringOr(c.PathFinalResults, "") }

// GetResultsDB returns the sqlite path used to record sweeps, or "" to disable.
func (c *EvalConfig) GetResultsDB() string { return stringOr(c.ResultsDB, "") }

// GetPathPostfixRawResults returns the raw-result encoding, csv by default.
func (c *EvalConfig) GetPathPostfixRawResults() string {
	return stringOr(c.PathPostfixRawResults, EncodingCSV)
}

// GetPathPrefixRawResults returns the raw-result filename prefix.
func (c *EvalConfig) GetPathPrefixRawResults() string {
	if c.PathPrefixRawResults == nil {
		return "results_raw_"
	}
	return *c.PathPrefixRawResults
}

// GetActivateCandidateSelection returns 0 (all-above) unless set.
func (c *EvalConfig) GetActivateCandidateSelection() int {
	if c.ActivateCandidateSelection == nil {
		return 0
	}
	return *c.ActivateCandidateSelection
}

// GetThresholdMode returns the threshold mode, fixed by default.
func (c *EvalConfig) GetThresholdMode() string {
	return stringOr(c.ThresholdMode, string(sbd.ThresholdFixed))
}

// GetWindowSize returns the adaptive window width.
func (c *EvalConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 30
	}
	return *c.WindowSize
}

// GetAlphaGrid returns the configured alpha grid or the historical default
// for the active threshold mode.
func (c *EvalConfig) GetAlphaGrid() []float64 {
	if c.AlphaGrid != nil {
		return append([]float64(nil), c.AlphaGrid...)
	}
	if c.GetThresholdMode() == string(sbd.ThresholdAdaptive) {
		return []float64{0.1, 0.15, 0.2, 0.25, 0.30, 0.4, 0.45, 0.5, 0.55, 0.6}
	}
	return descendingGrid(1.0, 0.0, 0.05)
}

// GetBetaGrid returns the beta grid. Fixed mode always uses [0].
func (c *EvalConfig) GetBetaGrid() []float64 {
	if c.GetThresholdMode() != string(sbd.ThresholdAdaptive) {
		return []float64{0}
	}
	if c.BetaGrid != nil {
		return append([]float64(nil), c.BetaGrid...)
	}
	return descendingGrid(1.0, 0.0, 0.05)
}

// descendingGrid returns from, from-step, ..., to rounded to two decimals so
// the values print the way the historical filenames do.
func descendingGrid(from, to, step float64) []float64 {
	n := int(math.Round((from-to)/step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round((from-float64(i)*step)*100) / 100
	}
	return out
}

// GetVideoExtension returns the extension used to locate a source video.
func (c *EvalConfig) GetVideoExtension() string { return stringOr(c.VideoExtension, ".m4v") }

// GetFrameCountSource returns where video lengths come from.
func (c *EvalConfig) GetFrameCountSource() string {
	return stringOr(c.FrameCountSource, FrameCountFFProbe)
}

// GetFFProbePath returns the ffprobe executable to run.
func (c *EvalConfig) GetFFProbePath() string { return stringOr(c.FFProbePath, "ffprobe") }

// GetSaveEvalResults reports whether per-threshold CSVs are written. Default on.
func (c *EvalConfig) GetSaveEvalResults() bool {
	return c.SaveEvalResults == nil || *c.SaveEvalResults == 1
}

// GetSaveFinalResults reports whether best-point shot lists are written.
func (c *EvalConfig) GetSaveFinalResults() bool {
	return c.SaveFinalResults != nil && *c.SaveFinalResults == 1
}

// GetSaveHTMLReport reports whether curves.html is written next to the PNGs.
func (c *EvalConfig) GetSaveHTMLReport() bool {
	return c.SaveHTMLReport != nil && *c.SaveHTMLReport == 1
}

// GetDebugFlag reports whether reconstructed shots are logged.
func (c *EvalConfig) GetDebugFlag() bool {
	return c.DebugFlag != nil && *c.DebugFlag == 1
}
