package depfet

const (
	s3bGates        = 128
	s3bWordsPerGate = 128
)

func convertS3B2Fold(data []byte, startGate int, values *ValueMatrix[float64]) error {
	values.SetSize(64, 256)
	view, err := NewDataView(data, Int16, s3bGates, s3bWordsPerGate)
	if err != nil {
		return err
	}
	adc := func(gate int, k int) float64 {
		return float64(view.Word(gate*s3bWordsPerGate + k))
	}
	for gate := 0; gate < s3bGates; gate++ {
		readoutGate := (startGate + gate) % s3bGates
		odderon := readoutGate % 2
		rgate := readoutGate * 2
		for col := 0; col < 32; col += 2 {
			values.Set(63-col, rgate+1-odderon, adc(gate, col*4+0))
			values.Set(col, rgate+odderon, adc(gate, col*4+1))
			values.Set(62-col, rgate+1-odderon, adc(gate, col*4+2))
			values.Set(col+1, rgate+odderon, adc(gate, col*4+3))
			values.Set(63-col, rgate+odderon, adc(gate, col*4+4))
			values.Set(col, rgate+1-odderon, adc(gate, col*4+5))
			values.Set(62-col, rgate+odderon, adc(gate, col*4+6))
			values.Set(col+1, rgate+1-odderon, adc(gate, col*4+7))
		}
	}
	return nil
}

func convertS3B4Fold(data []byte, startGate int, values *ValueMatrix[float64]) error {
	values.SetSize(32, 512)
	view, err := NewDataView(data, Int16, s3bGates, s3bWordsPerGate)
	if err != nil {
		return err
	}
	adc := func(gate int, k int) float64 {
		return float64(view.Word(gate*s3bWordsPerGate + k))
	}
	for gate := 0; gate < s3bGates; gate++ {
		readoutGate := (startGate + gate) % s3bGates
		rgate := readoutGate * 4
		for col := 0; col < 16; col++ {
			values.Set(31-col, rgate+3, adc(gate, col*8+0))
			values.Set(col, rgate+0, adc(gate, col*8+1))
			values.Set(31-col, rgate+2, adc(gate, col*8+2))
			values.Set(col, rgate+1, adc(gate, col*8+3))
			values.Set(31-col, rgate+1, adc(gate, col*8+4))
			values.Set(col, rgate+2, adc(gate, col*8+5))
			values.Set(31-col, rgate+0, adc(gate, col*8+6))
			values.Set(col, rgate+3, adc(gate, col*8+7))
		}
	}
	return nil
}
