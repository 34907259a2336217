package depfet

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// MaskEntry is one masked pixel in the conditions database. Negative
// columns or rows mask a full row or column, as in mask files.
type MaskEntry struct {
	Module int `db:"Module"`
	Col    int `db:"Col"`
	Row    int `db:"Row"`
}

// ModuleSettings holds the readout settings of a module for a run range.
type ModuleSettings struct {
	Module         int  `db:"Module"`
	Fold           int  `db:"Fold"`
	UseDCDBMapping bool `db:"UseDCDBMapping"`
	TrailingFrames int  `db:"TrailingFrames"`
}

func getMaskEntriesFromDB(db *sqlx.DB, runNumber int) ([]MaskEntry, error) {
	query := "SELECT Module, Col, Row FROM PixelMask WHERE MinRun <= %d and MaxRun >= %d ORDER BY Module"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Reading pixel masks from database", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	entries := make([]MaskEntry, 0)
	for rows.Next() {
		result := MaskEntry{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		entries = append(entries, result)
	}
	return entries, rows.Err()
}

// ApplyMaskEntries masks the pixels of entries in the mask of their module.
// Entries for modules without a mask are ignored.
func ApplyMaskEntries(masks MaskMap, entries []MaskEntry) (int, error) {
	applied := 0
	for _, entry := range entries {
		mask, ok := masks[entry.Module]
		if !ok {
			continue
		}
		if err := maskPixel(mask, entry.Col, entry.Row); err != nil {
			return applied, fmt.Errorf("module %d: %w", entry.Module, err)
		}
		applied++
	}
	return applied, nil
}

// LoadMasksFromDB adds the pixels masked in the database for runNumber to
// masks.
func LoadMasksFromDB(db *sqlx.DB, runNumber int, masks MaskMap) error {
	entries, err := getMaskEntriesFromDB(db, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error getting pixel masks from database: %w", err)
		logger.Error(errMessage.Error())
		return errMessage
	}
	applied, err := ApplyMaskEntries(masks, entries)
	if err != nil {
		return err
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("%d masked pixels read from DB for run %d", applied, runNumber)
		logger.Info(message, "database")
	}
	return nil
}

// GetModuleSettingsFromDB returns the readout settings of every module
// valid for runNumber.
func GetModuleSettingsFromDB(db *sqlx.DB, runNumber int) (map[int]ModuleSettings, error) {
	query := "SELECT Module, Fold, UseDCDBMapping, TrailingFrames FROM ModuleConfig WHERE MinRun <= %d and MaxRun >= %d"
	query = fmt.Sprintf(query, runNumber, runNumber)
	if configuration.Verbosity > 0 {
		logger.Info("Module settings read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return nil, errMessage
	}
	defer rows.Close()

	settings := make(map[int]ModuleSettings)
	for rows.Next() {
		result := ModuleSettings{}
		err := rows.StructScan(&result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return nil, errMessage
		}
		settings[result.Module] = result
	}
	return settings, rows.Err()
}

// ApplyModuleSettings configures reader from the settings of the modules.
// All modules of a run are read out the same way, so conflicting settings
// are an error.
func ApplyModuleSettings(reader *DataReader, settings map[int]ModuleSettings) error {
	var first *ModuleSettings
	for module, s := range settings {
		if first == nil {
			s := s
			first = &s
			continue
		}
		if s.Fold != first.Fold || s.UseDCDBMapping != first.UseDCDBMapping || s.TrailingFrames != first.TrailingFrames {
			return fmt.Errorf("module %d settings %+v differ from module %d settings %+v",
				module, s, first.Module, *first)
		}
	}
	if first == nil {
		return nil
	}
	reader.SetReadoutFold(first.Fold)
	reader.SetUseDCDBMapping(first.UseDCDBMapping)
	reader.SetTrailingFrames(first.TrailingFrames)
	return nil
}
