package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	depfet "github.com/depfet-daq/depfetreader_go/pkg"
)

func LoadConfiguration(filename string) (depfet.Configuration, error) {
	var config depfet.Configuration

	// Set default values
	config.Fold = 2
	config.UseDCDBMapping = true
	config.DCDCommonMode = false
	config.SigmaCut = 0
	config.Skip = 0
	config.MaxEvents = 0
	config.FrameNr = -1
	config.ScaleFactor = 1
	config.NoDB = true
	config.CompressionLevel = 4

	if filename == "" {
		return config, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	return config, nil
}

func applyFlags(cmd *cli.Command, config *depfet.Configuration) {
	if args := cmd.Args().Slice(); len(args) > 0 {
		config.InputFiles = args
	}
	if cmd.IsSet("calibration") {
		config.CalibrationFile = cmd.String("calibration")
	}
	if cmd.IsSet("output") {
		config.FileOut = cmd.String("output")
	}
	if cmd.IsSet("hdf5") {
		config.FileOutHDF5 = cmd.String("hdf5")
	}
	if cmd.IsSet("fold") {
		config.Fold = cmd.Int("fold")
	}
	if cmd.IsSet("dcd-common-mode") {
		config.DCDCommonMode = cmd.Bool("dcd-common-mode")
	}
	if cmd.IsSet("dcdb-mapping") {
		config.UseDCDBMapping = cmd.Bool("dcdb-mapping")
	}
	if cmd.IsSet("trailing-frames") {
		config.TrailingFrames = cmd.Int("trailing-frames")
	}
	if cmd.IsSet("frame") {
		config.FrameNr = cmd.Int("frame")
	}
	if cmd.IsSet("sigma-cut") {
		config.SigmaCut = cmd.Float("sigma-cut")
	}
	if cmd.IsSet("skip") {
		config.Skip = cmd.Int("skip")
	}
	if cmd.IsSet("max-events") {
		config.MaxEvents = cmd.Int("max-events")
	}
	if cmd.IsSet("scale") {
		config.ScaleFactor = cmd.Float("scale")
	}
	if cmd.IsSet("verbosity") {
		config.Verbosity = cmd.Int("verbosity")
	}
	if cmd.IsSet("compression") {
		config.CompressionLevel = cmd.Int("compression")
	}
}

func printConfiguration(config depfet.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Input files: %v", config.InputFiles), "config")
	logger.Info(fmt.Sprintf("Calibration file: %s", config.CalibrationFile), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("File out HDF5: %s", config.FileOutHDF5), "config")
	logger.Info(fmt.Sprintf("Fold: %d", config.Fold), "config")
	logger.Info(fmt.Sprintf("DCD common mode: %t", config.DCDCommonMode), "config")
	logger.Info(fmt.Sprintf("DCDB mapping: %t", config.UseDCDBMapping), "config")
	logger.Info(fmt.Sprintf("Trailing frames: %d", config.TrailingFrames), "config")
	logger.Info(fmt.Sprintf("Frame: %d", config.FrameNr), "config")
	logger.Info(fmt.Sprintf("Sigma cut: %g", config.SigmaCut), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Scale: %g", config.ScaleFactor), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
