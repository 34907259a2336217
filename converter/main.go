package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sqlx "github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	depfet "github.com/depfet-daq/depfetreader_go/pkg"
)

var dbConn *sqlx.DB
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
		Name:      "converter",
		Usage:     "Calibrate DEPFET raw data and write calibrated frames",
		ArgsUsage: "[raw files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file path"},
			&cli.StringSliceFlag{Name: "calibration-input", Usage: "raw files used for calibration, default the input files"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "text output file"},
			&cli.StringFlag{Name: "hdf5", Usage: "HDF5 output file"},
			&cli.BoolFlag{Name: "no-output", Usage: "only calibrate"},
			&cli.StringFlag{Name: "combined", Usage: "combined calibration file pattern, %d is the module"},
			&cli.StringFlag{Name: "pedestals", Usage: "pedestal map output file"},
			&cli.StringFlag{Name: "noise", Usage: "noise map output file"},
			&cli.StringFlag{Name: "hitmap", Usage: "hitmap file pattern, %d is the module"},
			&cli.StringFlag{Name: "mask", Aliases: []string{"m"}, Usage: "mask file pattern, %d is the module"},
			&cli.IntFlag{Name: "fold", Aliases: []string{"f"}, Usage: "readout fold (2 or 4)"},
			&cli.BoolFlag{Name: "dcd-common-mode", Usage: "use the DCD common mode instead of the Curo one"},
			&cli.BoolFlag{Name: "dcdb-mapping", Usage: "apply the DCDB channel mapping"},
			&cli.IntFlag{Name: "trailing-frames", Aliases: []string{"t"}, Usage: "frames following the main frame"},
			&cli.FloatFlag{Name: "sigma-cut", Aliases: []string{"s"}, Usage: "signal cut in units of noise"},
			&cli.FloatFlag{Name: "calibration-sigma", Usage: "outlier cut of the calibration passes"},
			&cli.IntFlag{Name: "calibration-events", Usage: "events used for calibration"},
			&cli.IntFlag{Name: "calibration-skip", Usage: "events skipped before calibration"},
			&cli.IntFlag{Name: "skip", Usage: "events skipped before conversion"},
			&cli.IntFlag{Name: "max-events", Aliases: []string{"n"}, Usage: "events converted, 0 for all"},
			&cli.FloatFlag{Name: "scale", Usage: "scale factor of the written values"},
			&cli.IntFlag{Name: "verbosity", Aliases: []string{"v"}, Usage: "verbosity level"},
			&cli.BoolFlag{Name: "no-db", Usage: "do not read masks and settings from the database"},
			&cli.IntFlag{Name: "compression", Usage: "HDF5 deflate level, 0 disables compression"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
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
	if len(configuration.CalibrationFiles) == 0 {
		configuration.CalibrationFiles = configuration.InputFiles
	}
	depfet.SetConfiguration(configuration)
	depfet.SetLogger(logger)

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	reader := depfet.NewDataReader()
	defer reader.Close()
	reader.SetReadoutFold(configuration.Fold)
	reader.SetUseDCDBMapping(configuration.UseDCDBMapping)
	reader.SetTrailingFrames(configuration.TrailingFrames)

	if !configuration.NoDB {
		dbConn, err = depfet.ConnectToDatabase(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}
		defer dbConn.Close()
	}

	masks, err := prepareRun(reader)
	if err != nil {
		return err
	}

	commonMode := depfet.CuroCommonMode()
	if configuration.DCDCommonMode {
		commonMode = depfet.DCDCommonMode()
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Using %v", commonMode), "main")
	}

	pass := depfet.CalibrationPass{
		Files:    configuration.CalibrationFiles,
		Events:   configuration.CalibrationEvents,
		Skip:     configuration.CalibrationSkip,
		SigmaCut: configuration.CalibrationSigma,
	}
	pedestals, noise, err := depfet.Calibrate(reader, pass, masks, commonMode)
	if err != nil {
		return fmt.Errorf("error calibrating: %w", err)
	}
	if err := writeCalibration(masks, pedestals, noise); err != nil {
		return err
	}

	if configuration.NoOutput {
		return nil
	}
	return convert(ctx, reader, masks, pedestals, noise, commonMode)
}

// prepareRun reads the first calibration event to learn the modules of the
// run, loads the readout settings and builds the pixel masks.
func prepareRun(reader *depfet.DataReader) (depfet.MaskMap, error) {
	if err := reader.Open(configuration.CalibrationFiles, 1); err != nil {
		return nil, err
	}
	runNumber := int(reader.Event().RunNumber)

	if dbConn != nil {
		settings, err := depfet.GetModuleSettingsFromDB(dbConn, runNumber)
		if err != nil {
			return nil, err
		}
		if err := depfet.ApplyModuleSettings(reader, settings); err != nil {
			return nil, err
		}
		// the new settings change the frame layout
		if err := reader.Open(configuration.CalibrationFiles, 1); err != nil {
			return nil, err
		}
	}

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("no events in calibration files")
	}
	masks, err := depfet.BuildMasks(reader.Event(), configuration.MaskFile)
	if err != nil {
		return nil, err
	}
	if dbConn != nil {
		if err := depfet.LoadMasksFromDB(dbConn, runNumber, masks); err != nil {
			return nil, err
		}
	}
	if configuration.Verbosity > 0 {
		for module, mask := range masks {
			message := fmt.Sprintf("Module %d: %d masked pixels", module, depfet.CountMasked(mask))
			logger.Info(message, "main")
		}
	}
	return masks, nil
}

func writeMeanMapFile(filename string, data map[int]*depfet.MeanMatrix) error {
	file, err := os.Create(filename)
	if err != nil {
		return &depfet.ErrOpenFile{Filename: filename, Err: err}
	}
	err = depfet.WriteMeanMap(file, data, configuration.ScaleFactor)
	if errClose := file.Close(); err == nil {
		err = errClose
	}
	return err
}

func writeCalibration(masks depfet.MaskMap, pedestals depfet.PedestalMap, noise depfet.NoiseMap) error {
	if configuration.CombinedFile != "" {
		err := depfet.WriteCalibrationFiles(configuration.CombinedFile, masks, pedestals, noise, configuration.ScaleFactor)
		if err != nil {
			return err
		}
	}
	if configuration.PedestalFile != "" {
		if err := writeMeanMapFile(configuration.PedestalFile, pedestals); err != nil {
			return fmt.Errorf("error writing pedestals: %w", err)
		}
	}
	if configuration.NoiseFile != "" {
		if err := writeMeanMapFile(configuration.NoiseFile, noise); err != nil {
			return fmt.Errorf("error writing noise: %w", err)
		}
	}
	return nil
}

func convert(ctx context.Context, reader *depfet.DataReader, masks depfet.MaskMap,
	pedestals depfet.PedestalMap, noise depfet.NoiseMap, commonMode *depfet.CommonMode) error {
	var textWriter *depfet.TextWriter
	var hdf5Writer *depfet.Writer
	var err error
	if configuration.FileOut != "" {
		textWriter, err = depfet.NewTextWriter(configuration.FileOut, configuration.ScaleFactor)
		if err != nil {
			return err
		}
		defer func() {
			if textWriter != nil {
				textWriter.Close()
			}
		}()
	}
	if configuration.FileOutHDF5 != "" {
		hdf5Writer, err = depfet.NewWriter(configuration.FileOutHDF5)
		if err != nil {
			return err
		}
		defer hdf5Writer.Close()
		if err := hdf5Writer.WriteCalibration(masks, pedestals, noise); err != nil {
			return err
		}
	}

	noiseValues := depfet.NoiseValues(noise)
	hitmaps := make(map[int]*depfet.Hitmap)
	summary := newCommonModeSummary()

	if err := reader.Open(configuration.InputFiles, configuration.MaxEvents); err != nil {
		return err
	}
	if err := reader.Skip(configuration.Skip); err != nil {
		return fmt.Errorf("error skipping events: %w", err)
	}

	eventNr := 1
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		event := reader.Event()
		for i := range event.Frames {
			frame := event.Frame(i)
			module := frame.ModuleNr
			ped, ok := pedestals[module]
			if !ok {
				return fmt.Errorf("module %d has no calibration", module)
			}
			data := frame.Matrix()
			if err := depfet.SubtractMeans(data, ped); err != nil {
				return err
			}
			commonMode.SetMask(masks[module])
			commonMode.SetNoise(configuration.SigmaCut, noiseValues[module])
			if err := commonMode.Apply(data); err != nil {
				return err
			}
			summary.add(module, commonMode.CommonModesRow(), commonMode.CommonModesCol())

			hitmap, ok := hitmaps[module]
			if !ok {
				if hitmap, err = depfet.NewHitmap(masks[module]); err != nil {
					return err
				}
				hitmaps[module] = hitmap
			}
			if err := hitmap.Fill(data, noiseValues[module]); err != nil {
				return err
			}
		}

		if textWriter != nil {
			textWriter.BeginEvent(event.RunNumber, event.EventNumber, event.Len())
			for i := range event.Frames {
				textWriter.WriteFrame(event.Frame(i), nil)
			}
			textWriter.EndEvent()
		}
		if hdf5Writer != nil {
			if err := hdf5Writer.WriteEvent(event); err != nil {
				return err
			}
		}
		if configuration.Verbosity > 0 && depfet.ShowProgress(eventNr, 1, 4) {
			message := fmt.Sprintf("Converted %d events", eventNr)
			logger.Info(message, "main")
		}
		eventNr++
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading events: %w", err)
	}

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Total events converted: %d", eventNr-1), "main")
		summary.log(logger)
	}
	if configuration.HitmapFile != "" {
		if err := depfet.WriteHitmapFiles(configuration.HitmapFile, hitmaps); err != nil {
			return err
		}
	}
	if textWriter != nil {
		if err := textWriter.Close(); err != nil {
			return err
		}
		textWriter = nil
	}
	return nil
}
