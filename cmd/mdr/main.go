package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	// Frame decoders for export.LoadFrame.
	_ "image/jpeg"
	_ "image/png"

	"mdr/internal/models"
	"mdr/pkg/config"
	"mdr/pkg/export"
	"mdr/pkg/mdr"
	"mdr/pkg/metrics"
	"mdr/pkg/signal"
	"mdr/pkg/warp"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the 2D image series (JPEG or PNG, one file per acquisition)")
	configPath := flag.String("config", "mdr.yaml", "Path to the YAML configuration file")
	modelName := flag.String("model", "", "Signal model override (default: taken from config)")
	outputDir := flag.String("output", "", "Output directory override (default: taken from config)")
	flag.Parse()

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration, falling back to defaults if no file exists
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *modelName != "" {
		cfg.Model.Name = *modelName
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}

	fmt.Println("================================")
	fmt.Println("MODEL-DRIVEN REGISTRATION FOR QUANTITATIVE 2D IMAGE SERIES")
	fmt.Println("================================")

	// Load the series sorted by acquisition order
	series, err := loadSeries(*inputDir, cfg)
	if err != nil {
		log.Fatalf("Failed to load input series: %v", err)
	}
	fmt.Printf("Loaded %d frames of %dx%d pixels\n", len(series.Slices), series.Width, series.Height)

	// Resolve the injected strategies: signal model by name, registration
	// engine with its opaque option set forwarded verbatim
	model, err := signal.Lookup(cfg.Model.Name)
	if err != nil {
		log.Fatalf("Failed to resolve signal model: %v", err)
	}
	engine := warp.NewBlockMatch(warp.Config(cfg.Registration.Engine))

	stack := &mdr.ImageStack{
		Frames: series.Frames(),
		Width:  series.Width,
		Height: series.Height,
	}
	opts := mdr.Options{
		Tolerance:     cfg.Registration.Tolerance,
		MaxIterations: cfg.Registration.MaxIterations,
		Workers:       cfg.Processing.Workers,
		Verbose:       cfg.Output.Verbose,
	}

	// Run the registration loop
	fmt.Printf("Starting model-driven registration with the %q model...\n", cfg.Model.Name)
	startTime := time.Now()
	result, err := mdr.Run(stack, series.Parameters(), model, engine, opts)
	if err != nil {
		log.Fatalf("Registration failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if result.Converged {
		fmt.Printf("\nConverged after %d iteration(s) in %.2f seconds\n", result.Iterations, processingTime.Seconds())
	} else {
		fmt.Printf("\nStopped at the iteration cap (%d) after %.2f seconds\n", result.Iterations, processingTime.Seconds())
	}
	if n := result.FlaggedCount(); n > 0 {
		fmt.Printf("%d pixel(s) carry sentinel fit output (no model convergence)\n", n)
	}

	// Export results
	if err := exportResults(result, cfg.Output.Directory); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}
	fmt.Printf("Results written to: %s\n", cfg.Output.Directory)

	// Report registration quality between the registered series and its
	// model fit
	summary, err := metrics.Evaluate(result.Coregistered.Frames, result.ModelFit.Frames)
	if err != nil {
		log.Fatalf("Failed to compute quality metrics: %v", err)
	}
	fmt.Printf("\nRegistration quality (registered vs. model fit):\n")
	fmt.Printf("================================================\n")
	fmt.Printf("Root Mean Square Error (RMSE): %.6f\n", summary.RMSE)
	fmt.Printf("Structural Similarity Index (SSIM): %.3f\n", summary.SSIM)
	fmt.Printf("Mutual Information (MI): %.3f bits\n", summary.MI)
}

// loadSeries reads all image files from the input directory, sorted
// alphanumerically to preserve acquisition order, and attaches the
// per-frame acquisition parameters from the configuration.
func loadSeries(dir string, cfg *config.Config) (*models.Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG or PNG images found in %s", dir)
	}

	// Sort files alphanumerically to ensure correct frame order
	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	if len(cfg.Model.Values) > 0 && len(cfg.Model.Values) != len(files) {
		return nil, fmt.Errorf("config lists %d acquisition parameters for %d frames", len(cfg.Model.Values), len(files))
	}
	if len(cfg.Model.Values) == 0 && cfg.Model.Name != "identity" {
		return nil, fmt.Errorf("model %q needs one acquisition parameter per frame in model.values", cfg.Model.Name)
	}

	series := &models.Series{}
	for i, name := range files {
		data, width, height, err := export.LoadFrame(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load frame %s: %v", name, err)
		}
		if i == 0 {
			series.Width = width
			series.Height = height
		} else if width != series.Width || height != series.Height {
			return nil, fmt.Errorf("frame %s is %dx%d, expected %dx%d", name, width, height, series.Width, series.Height)
		}
		slice := models.Slice{
			Data:     data,
			Index:    i,
			Filename: name,
		}
		if len(cfg.Model.Values) > 0 {
			slice.Parameter = cfg.Model.Values[i]
		}
		series.Slices = append(series.Slices, slice)
	}

	// T1 mapping series are fit against inversion time, so order the
	// frames by it; diffusion series keep their acquisition-time order.
	if cfg.Model.Name == "t1" {
		series.SortByParameter()
	}
	return series, nil
}

// exportResults writes every product of the run: registered frames, model
// fit, both deformation-field channels, one image per fitted parameter
// map, and the diagnostics CSV.
func exportResults(result *mdr.Result, dir string) error {
	w, h := result.Coregistered.Width, result.Coregistered.Height

	if err := export.SaveFrames(result.Coregistered.Frames, w, h, filepath.Join(dir, "coregistered"), "registered"); err != nil {
		return err
	}
	if err := export.SaveFrames(result.ModelFit.Frames, w, h, filepath.Join(dir, "fit"), "fit_image"); err != nil {
		return err
	}

	fieldsX := make([][]float64, len(result.Deformation))
	fieldsY := make([][]float64, len(result.Deformation))
	for i, field := range result.Deformation {
		fieldsX[i] = field.X
		fieldsY[i] = field.Y
	}
	if err := export.SaveFrames(fieldsX, w, h, filepath.Join(dir, "deformation_field"), "final_deformation_x"); err != nil {
		return err
	}
	if err := export.SaveFrames(fieldsY, w, h, filepath.Join(dir, "deformation_field"), "final_deformation_y"); err != nil {
		return err
	}

	for _, m := range result.Maps {
		filename := filepath.Join(dir, "fitted_parameters", m.Name+".jpg")
		if err := export.SaveFrame(m.Data, w, h, filename); err != nil {
			return fmt.Errorf("failed to save parameter map %s: %v", m.Name, err)
		}
	}

	return export.WriteDiagnosticsCSV(result.Diagnostics, filepath.Join(dir, "largest_deformations.csv"))
}

// extractNumber pulls the first run of digits out of a filename for
// alphanumeric ordering; files without digits sort by their position.
func extractNumber(name string) int {
	num := 0
	found := false
	for _, r := range name {
		if unicode.IsDigit(r) {
			num = num*10 + int(r-'0')
			found = true
		} else if found {
			break
		}
	}
	return num
}
