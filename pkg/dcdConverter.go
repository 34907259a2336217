package depfet

// Switcher channels are turned on consecutively and map one to one to
// double rows.
var swbChannelMap = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// Routing of DCDB FPGA channels to sensor drain lines.
var fpgaToDrainMap = [128]int{
	0, 4, 8, 12, 2, 6, 10, 14, 124, 120,
	116, 112, 126, 122, 118, 114, 16, 20, 24, 28,
	18, 22, 26, 30, 108, 104, 100, 96, 110, 106,
	102, 98, 36, 35, 37, 34, 52, 51, 53, 50,
	68, 67, 69, 66, 84, 83, 85, 82, 38, 33,
	39, 32, 54, 49, 55, 48, 70, 65, 71, 64,
	86, 81, 87, 80, 1, 5, 9, 13, 3, 7,
	11, 15, 125, 121, 117, 113, 127, 123, 119, 115, 17,
	21, 25, 29, 19, 23, 27, 31, 109, 105,
	101, 97, 111, 107, 103, 99, 44, 43, 45,
	42, 60, 59, 61, 58, 76, 75, 77, 74, 92,
	91, 93, 90, 46, 41, 47, 40, 62, 57, 63,
	56, 78, 73, 79, 72, 94, 89, 95, 88,
}

// One DCD frame is 2048 signed 8 bit values for both folds.
const dcdFrameValues = 2048

// SWBChannelMap returns a copy of the switcher channel to double row table.
func SWBChannelMap() [16]int {
	return swbChannelMap
}

// FPGAToDrainMap returns a copy of the FPGA channel to drain table.
func FPGAToDrainMap() [128]int {
	return fpgaToDrainMap
}

func convertDCD2Fold(data []byte, startGate int, useMapping bool, values *ValueMatrix[float64]) error {
	values.SetSize(64, 32)
	view, err := NewDataView(data, Int8, dcdFrameValues, 1)
	if err != nil {
		return err
	}
	iData := 0
	if useMapping {
		nDCDBChannels := values.SizeX() * 2
		nSWBChannels := values.SizeY() / 2
		for offset := 0; offset < nSWBChannels; offset++ {
			iSWB := (startGate + offset) % nSWBChannels
			iDoubleRow := swbChannelMap[iSWB]
			for iFPGA := 0; iFPGA < nDCDBChannels; iFPGA++ {
				iDrain := fpgaToDrainMap[iFPGA]
				col := iDrain / 2
				row := 2 * iDoubleRow
				// odd double rows have the drain parity swapped
				if (iDrain%2 == 0) == (iDoubleRow%2 != 0) {
					row++
				}
				values.Set(col, row, float64(view.Index(iData)))
				iData++
			}
		}
		return nil
	}
	for offset := 0; offset < values.SizeY(); offset++ {
		gate := (startGate + offset) % values.SizeY()
		for drain := 0; drain < values.SizeX(); drain++ {
			values.Set(drain, gate, float64(view.Index(iData)))
			iData++
		}
	}
	return nil
}

func convertDCD4Fold(data []byte, startGate int, useMapping bool, values *ValueMatrix[float64]) error {
	values.SetSize(32, 64)
	view, err := NewDataView(data, Int8, dcdFrameValues, 1)
	if err != nil {
		return err
	}
	nGates := values.SizeY() / 4
	nColDCD := values.SizeX() * 4
	iData := 0
	for gate := 0; gate < nGates; gate++ {
		rowGroup := (startGate + gate) % nGates
		for colDCD := 0; colDCD < nColDCD; colDCD++ {
			drain := colDCD
			if useMapping {
				drain = fpgaToDrainMap[colDCD]
			}
			col := (drain / 4) % values.SizeX()
			row := (rowGroup*4 + 3 - drain%4) % values.SizeY()
			values.Set(col, row, float64(view.Index(iData)))
			iData++
		}
	}
	return nil
}
