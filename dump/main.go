package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	depfet "github.com/depfet-daq/depfetreader_go/pkg"
)

var configuration depfet.Configuration

var logger Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	cmd := &cli.Command{
		Name:      "dump",
		Usage:     "Dump DEPFET events calibrated with a combined calibration file",
		ArgsUsage: "[raw files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file path"},
			&cli.StringFlag{Name: "calibration", Usage: "combined calibration file pattern, %d is the module"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "text output file"},
			&cli.StringFlag{Name: "hdf5", Usage: "HDF5 output file"},
			&cli.IntFlag{Name: "fold", Aliases: []string{"f"}, Usage: "readout fold (2 or 4)"},
			&cli.BoolFlag{Name: "dcd-common-mode", Usage: "use the DCD common mode instead of the Curo one"},
			&cli.BoolFlag{Name: "dcdb-mapping", Usage: "apply the DCDB channel mapping"},
			&cli.IntFlag{Name: "trailing-frames", Aliases: []string{"t"}, Usage: "frames following the main frame"},
			&cli.IntFlag{Name: "frame", Usage: "frame number to dump, -1 for all"},
			&cli.FloatFlag{Name: "sigma-cut", Aliases: []string{"s"}, Usage: "zero suppression in units of noise, 0 disables it"},
			&cli.IntFlag{Name: "skip", Usage: "events skipped"},
			&cli.IntFlag{Name: "max-events", Aliases: []string{"n"}, Usage: "events dumped, 0 for all"},
			&cli.FloatFlag{Name: "scale", Usage: "scale factor of the written values"},
			&cli.IntFlag{Name: "verbosity", Aliases: []string{"v"}, Usage: "verbosity level"},
			&cli.IntFlag{Name: "compression", Usage: "HDF5 deflate level, 0 disables compression"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// calibrationFilename returns the calibration file of module. A pattern
// without a format verb is used for every module.
func calibrationFilename(pattern string, module int) string {
	if !strings.Contains(pattern, "%") {
		return pattern
	}
	return fmt.Sprintf(pattern, module)
}

func run(ctx context.Context, cmd *cli.Command) error {
	configFilename := cmd.String("config")
	var err error
	configuration, err = LoadConfiguration(configFilename)
	if err != nil {
		return fmt.Errorf("error reading configuration file: %w", err)
	}
	applyFlags(cmd, &configuration)
	if len(configuration.InputFiles) == 0 {
		return errors.New("no input files")
	}
	if configuration.CalibrationFile == "" {
		return errors.New("no calibration file")
	}
	depfet.SetConfiguration(configuration)
	depfet.SetLogger(logger)
	if configuration.Verbosity > 0 {
		printConfiguration(configuration, logger)
	}

	reader := depfet.NewDataReader()
	defer reader.Close()
	reader.SetReadoutFold(configuration.Fold)
	reader.SetUseDCDBMapping(configuration.UseDCDBMapping)
	reader.SetTrailingFrames(configuration.TrailingFrames)
	if err := reader.Open(configuration.InputFiles, configuration.MaxEvents); err != nil {
		return err
	}
	if err := reader.Skip(configuration.Skip); err != nil {
		return fmt.Errorf("error skipping events: %w", err)
	}

	var textWriter *depfet.TextWriter
	if configuration.FileOut != "" {
		textWriter, err = depfet.NewTextWriter(configuration.FileOut, 1)
		if err != nil {
			return err
		}
		defer func() {
			if textWriter != nil {
				textWriter.Close()
			}
		}()
	}
	var hdf5Writer *depfet.Writer
	if configuration.FileOutHDF5 != "" {
		hdf5Writer, err = depfet.NewWriter(configuration.FileOutHDF5)
		if err != nil {
			return err
		}
		defer hdf5Writer.Close()
	}

	commonMode := depfet.CuroCommonMode()
	if configuration.DCDCommonMode {
		commonMode = depfet.DCDCommonMode()
	}
	calibrations := make(map[int]*depfet.CalibrationData)

	eventNr := 1
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		event := reader.Event()
		if textWriter != nil {
			textWriter.BeginEvent(event.RunNumber, event.EventNumber, countSelected(event))
		}
		for i := range event.Frames {
			frame := event.Frame(i)
			calibration, err := moduleCalibration(calibrations, frame)
			if err != nil {
				return err
			}
			if err := applyCalibration(frame, calibration, commonMode); err != nil {
				return err
			}
			if textWriter != nil && selected(frame) {
				textWriter.WriteFrame(frame, dumpValue(calibration))
			}
		}
		if textWriter != nil {
			textWriter.EndEvent()
		}
		if hdf5Writer != nil {
			if err := hdf5Writer.WriteEvent(event); err != nil {
				return err
			}
		}
		if configuration.Verbosity > 0 && depfet.ShowProgress(eventNr, 1, 4) {
			message := fmt.Sprintf("Dumped %d events", eventNr)
			logger.Info(message, "main")
		}
		eventNr++
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading events: %w", err)
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Total events dumped: %d", eventNr-1), "main")
	}
	if textWriter != nil {
		err := textWriter.Close()
		textWriter = nil
		return err
	}
	return nil
}

func moduleCalibration(calibrations map[int]*depfet.CalibrationData, frame *depfet.ADCValues) (*depfet.CalibrationData, error) {
	calibration, ok := calibrations[frame.ModuleNr]
	if ok {
		return calibration, nil
	}
	filename := calibrationFilename(configuration.CalibrationFile, frame.ModuleNr)
	calibration, err := depfet.ReadCalibrationFile(filename, frame.SizeX(), frame.SizeY())
	if err != nil {
		return nil, fmt.Errorf("error reading calibration of module %d: %w", frame.ModuleNr, err)
	}
	calibrations[frame.ModuleNr] = calibration
	return calibration, nil
}

func applyCalibration(frame *depfet.ADCValues, calibration *depfet.CalibrationData, commonMode *depfet.CommonMode) error {
	data := frame.Matrix()
	if err := data.Subtract(calibration.Pedestals); err != nil {
		return err
	}
	commonMode.SetMask(calibration.Mask)
	if configuration.SigmaCut > 0 {
		commonMode.SetNoise(configuration.SigmaCut, calibration.Noise)
	} else {
		commonMode.SetNoise(0, nil)
	}
	return commonMode.Apply(data)
}

func selected(frame *depfet.ADCValues) bool {
	return configuration.FrameNr < 0 || frame.FrameNr == configuration.FrameNr
}

func countSelected(event *depfet.Event) int {
	n := 0
	for i := range event.Frames {
		if selected(event.Frame(i)) {
			n++
		}
	}
	return n
}

// dumpValue writes masked pixels as -1 and, with a sigma cut, pixels below
// the cut as 0.
func dumpValue(calibration *depfet.CalibrationData) func(x int, y int, adc float64) float64 {
	return func(x int, y int, adc float64) float64 {
		if calibration.Mask.At(x, y) != 0 {
			return -1
		}
		if configuration.SigmaCut > 0 && adc < configuration.SigmaCut*calibration.Noise.At(x, y) {
			return 0
		}
		return adc * configuration.ScaleFactor
	}
}
