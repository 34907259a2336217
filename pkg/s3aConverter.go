package depfet

const (
	s3aColumns = 64
	s3aRows    = 128
)

// convertS3A decodes self-addressed words: every 32 bit word carries its
// own column in bits 16-21, its row in bits 22-28 and the ADC value in the
// low 16 bits.
func convertS3A(data []byte, values *ValueMatrix[float64]) error {
	values.SetSize(s3aColumns, s3aRows)
	view, err := NewDataView(data, Uint32, s3aColumns*s3aRows, 1)
	if err != nil {
		return err
	}
	for ipix := 0; ipix < s3aColumns*s3aRows; ipix++ {
		word := view.Word(ipix)
		x := int((word >> 16) & 0x3F)
		y := int((word >> 22) & 0x7F)
		values.Set(x, y, float64(word&0xFFFF))
	}
	return nil
}
