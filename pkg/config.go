package depfet

type Configuration struct {
	InputFiles        []string `json:"input_files"`
	CalibrationFiles  []string `json:"calibration_files"`
	FileOut           string   `json:"file_out"`
	FileOutHDF5       string   `json:"file_out_hdf5"`
	NoOutput          bool     `json:"no_output"`
	CalibrationFile   string   `json:"calibration_file"`
	CombinedFile      string   `json:"combined_file"`
	PedestalFile      string   `json:"pedestal_file"`
	NoiseFile         string   `json:"noise_file"`
	HitmapFile        string   `json:"hitmap_file"`
	MaskFile          string   `json:"mask_file"`
	Fold              int      `json:"fold"`
	DCDCommonMode     bool     `json:"dcd_common_mode"`
	UseDCDBMapping    bool     `json:"use_dcdb_mapping"`
	TrailingFrames    int      `json:"trailing_frames"`
	SigmaCut          float64  `json:"sigma_cut"`
	CalibrationSigma  float64  `json:"calibration_sigma"`
	CalibrationEvents int      `json:"calibration_events"`
	CalibrationSkip   int      `json:"calibration_skip"`
	Skip              int      `json:"skip"`
	MaxEvents         int      `json:"max_events"`
	FrameNr           int      `json:"frame"`
	ScaleFactor       float64  `json:"scale"`
	Verbosity         int      `json:"verbosity"`
	NoDB              bool     `json:"no_db"`
	Host              string   `json:"host"`
	User              string   `json:"user"`
	Passwd            string   `json:"pass"`
	DBName            string   `json:"dbname"`
	CompressionLevel  int      `json:"compression_level"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}
