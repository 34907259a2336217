package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	depfet "github.com/depfet-daq/depfetreader_go/pkg"
)

func defaultConfiguration() depfet.Configuration {
	var config depfet.Configuration
	config.Fold = 2
	config.DCDCommonMode = false
	config.UseDCDBMapping = true
	config.TrailingFrames = 0
	config.SigmaCut = 5
	config.CalibrationSigma = 3
	config.CalibrationEvents = 1000
	config.CalibrationSkip = 0
	config.Skip = 0
	config.MaxEvents = 0
	config.FrameNr = -1
	config.ScaleFactor = 1
	config.Verbosity = 0
	config.NoDB = true
	config.Host = "localhost"
	config.User = "depfetreader"
	config.Passwd = "readonly"
	config.DBName = "DEPFET"
	config.CompressionLevel = 4
	return config
}

// LoadConfiguration returns the defaults overridden by the values in
// filename. An empty filename only returns the defaults.
func LoadConfiguration(filename string) (depfet.Configuration, error) {
	config := defaultConfiguration()
	if filename == "" {
		return config, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return config, err
	}
	return config, nil
}

// applyFlags overrides config with the flags given on the command line.
func applyFlags(cmd *cli.Command, config *depfet.Configuration) {
	if args := cmd.Args().Slice(); len(args) > 0 {
		config.InputFiles = args
	}
	if cmd.IsSet("calibration-input") {
		config.CalibrationFiles = cmd.StringSlice("calibration-input")
	}
	if cmd.IsSet("output") {
		config.FileOut = cmd.String("output")
	}
	if cmd.IsSet("hdf5") {
		config.FileOutHDF5 = cmd.String("hdf5")
	}
	if cmd.IsSet("no-output") {
		config.NoOutput = cmd.Bool("no-output")
	}
	if cmd.IsSet("combined") {
		config.CombinedFile = cmd.String("combined")
	}
	if cmd.IsSet("pedestals") {
		config.PedestalFile = cmd.String("pedestals")
	}
	if cmd.IsSet("noise") {
		config.NoiseFile = cmd.String("noise")
	}
	if cmd.IsSet("hitmap") {
		config.HitmapFile = cmd.String("hitmap")
	}
	if cmd.IsSet("mask") {
		config.MaskFile = cmd.String("mask")
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
	if cmd.IsSet("sigma-cut") {
		config.SigmaCut = cmd.Float("sigma-cut")
	}
	if cmd.IsSet("calibration-sigma") {
		config.CalibrationSigma = cmd.Float("calibration-sigma")
	}
	if cmd.IsSet("calibration-events") {
		config.CalibrationEvents = cmd.Int("calibration-events")
	}
	if cmd.IsSet("calibration-skip") {
		config.CalibrationSkip = cmd.Int("calibration-skip")
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
	if cmd.IsSet("no-db") {
		config.NoDB = cmd.Bool("no-db")
	}
	if cmd.IsSet("compression") {
		config.CompressionLevel = cmd.Int("compression")
	}
}

func printConfiguration(config depfet.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Input files: %v", config.InputFiles), "config")
	logger.Info(fmt.Sprintf("Calibration files: %v", config.CalibrationFiles), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("File out HDF5: %s", config.FileOutHDF5), "config")
	logger.Info(fmt.Sprintf("No output: %t", config.NoOutput), "config")
	logger.Info(fmt.Sprintf("Combined calibration: %s", config.CombinedFile), "config")
	logger.Info(fmt.Sprintf("Pedestal file: %s", config.PedestalFile), "config")
	logger.Info(fmt.Sprintf("Noise file: %s", config.NoiseFile), "config")
	logger.Info(fmt.Sprintf("Hitmap file: %s", config.HitmapFile), "config")
	logger.Info(fmt.Sprintf("Mask file: %s", config.MaskFile), "config")
	logger.Info(fmt.Sprintf("Fold: %d", config.Fold), "config")
	logger.Info(fmt.Sprintf("DCD common mode: %t", config.DCDCommonMode), "config")
	logger.Info(fmt.Sprintf("DCDB mapping: %t", config.UseDCDBMapping), "config")
	logger.Info(fmt.Sprintf("Trailing frames: %d", config.TrailingFrames), "config")
	logger.Info(fmt.Sprintf("Sigma cut: %g", config.SigmaCut), "config")
	logger.Info(fmt.Sprintf("Calibration sigma: %g", config.CalibrationSigma), "config")
	logger.Info(fmt.Sprintf("Calibration events: %d", config.CalibrationEvents), "config")
	logger.Info(fmt.Sprintf("Calibration skip: %d", config.CalibrationSkip), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Scale: %g", config.ScaleFactor), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
}
