package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/logger"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/osmparser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	mapFile    string
	outFile    string
	logLevel   string
	cpuprofile string
)

var rootCmd = &cobra.Command{
	Use:   "lats-preprocessing",
	Short: "Convert an openstreetmap extract into a road network file the engine can load",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&mapFile, "file", "f", "", "openstreetmap file (.osm.pbf, .pbf, .osm or .xml)")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "./data/network.json.zst", "output file (.json or .json.zst)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to file")
	_ = rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logger.New(logLevel, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cpuprofile != "" {
		// go tool pprof ./bin/lats-preprocessing lats-cpu.prof
		f, err := os.Create(cpuprofile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Info("reading osm file", zap.String("file", mapFile))
	rn, err := osmparser.ParseFile(cmd.Context(), mapFile, log)
	if err != nil {
		return err
	}
	if err := rn.Validate(); err != nil {
		return fmt.Errorf("parsed road network is invalid: %w", err)
	}

	if err := network.NewLoader(log).SaveFile(outFile, rn); err != nil {
		return err
	}
	mainNodes, mainEdges := rn.MainRoadCounts()
	log.Info("road network written",
		zap.String("out", outFile),
		zap.Int("nodes", len(rn.Nodes)),
		zap.Int("edges", len(rn.Edges)),
		zap.Int("mainRoadNodes", mainNodes),
		zap.Int("mainRoadEdges", mainEdges),
	)
	return nil
}
