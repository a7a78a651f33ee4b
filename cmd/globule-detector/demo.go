package main

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"globule-detector/internal/detector"
	"globule-detector/internal/opencv/memory"
	"globule-detector/internal/opencv/safe"
	"globule-detector/internal/params"
	"globule-detector/internal/shutdown"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"
)

type globuleReport struct {
	Bounds string  `yaml:"bounds"`
	Area   float64 `yaml:"area_px"`
}

type demoReport struct {
	Stats    detector.Stats  `yaml:"stats"`
	Globules []globuleReport `yaml:"globules"`
	Memory   memory.Stats    `yaml:"memory"`
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run detection on a synthetic tile and print the result",
		Long: "Renders a stained tile with one isolated globule, two touching globules and\n" +
			"a strip of noise, then runs mask preparation and globule detection on it.",
		Args: cobra.NoArgs,
		RunE: runDemo,
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := params.NewGlobuleParameters(cfg.Globule)
	if err != nil {
		return err
	}

	sm := shutdown.NewManager(cmd.Context(), log)
	sm.Listen()
	defer sm.Shutdown()

	mem := memory.NewManager(log)
	sm.Register(mem)

	tile, err := syntheticTile()
	if err != nil {
		return err
	}
	defer tile.Close()

	res, err := detectTile(sm.Context(), detector.NewDetector(log, mem), tile, p)
	if err != nil {
		return err
	}

	report := demoReport{Stats: res.Stats, Memory: mem.GetStats()}
	for _, g := range res.Globules {
		report.Globules = append(report.Globules, globuleReport{
			Bounds: g.Bounds().String(),
			Area:   g.Area(),
		})
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("report encoding failed: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func detectTile(ctx context.Context, d *detector.Detector, tile *safe.Mat, p *params.GlobuleParameters) (*detector.Result, error) {
	mask, err := d.PrepareGlobuleMask(ctx, tile, p)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	return d.Detect(mask, p)
}

func syntheticTile() (*safe.Mat, error) {
	tile, err := safe.NewTaggedMat(128, 192, gocv.MatTypeCV8UC3, "demo_tile")
	if err != nil {
		return nil, err
	}

	stain := color.RGBA{R: 230, G: 120, B: 200, A: 255}
	fat := color.RGBA{R: 250, G: 250, B: 250, A: 255}

	m := tile.GetMat()
	gocv.Rectangle(&m, image.Rect(0, 0, 192, 128), stain, -1)
	gocv.Circle(&m, image.Pt(32, 40), 20, fat, -1)
	gocv.Circle(&m, image.Pt(100, 64), 24, fat, -1)
	gocv.Circle(&m, image.Pt(144, 64), 24, fat, -1)
	gocv.Rectangle(&m, image.Rect(8, 110, 184, 113), fat, -1)

	return tile, nil
}
