package codec

import "fmt"

func checkShape(rows int, rowLen func(int) int) error {
	if rows != Rows {
		return fmt.Errorf("%w, got %d rows", ErrShape, rows)
	}
	for i := 0; i < rows; i++ {
		if n := rowLen(i); n != Cols {
			return fmt.Errorf("%w, row %d has %d columns", ErrShape, i, n)
		}
	}
	return nil
}

// CheckValues returns ErrShape if vals is not 8x8
func CheckValues(vals [][]Value) error {
	return checkShape(len(vals), func(i int) int { return len(vals[i]) })
}

// CheckCodes returns ErrShape if codes is not 8x8
func CheckCodes(codes [][]Code) error {
	return checkShape(len(codes), func(i int) int { return len(codes[i]) })
}

// EncodeMatrix encodes every cell of an 8x8 array of logical values
func EncodeMatrix(vals [][]Value, ctx Context) ([][]Code, error) {
	if err := CheckValues(vals); err != nil {
		return nil, err
	}
	out := make([][]Code, Rows)
	for r, row := range vals {
		out[r] = make([]Code, Cols)
		for c, v := range row {
			code, err := Encode(v, ctx)
			if err != nil {
				return nil, fmt.Errorf("cell (%d,%d): %w", r, c, err)
			}
			out[r][c] = code
		}
	}
	return out, nil
}

// Flatten lays an 8x8 array of codes out row-major, row 0 left to right then
// row 1 and so on.  This is the order the controller expects on the wire
func Flatten(codes [][]Code) ([]byte, error) {
	if err := CheckCodes(codes); err != nil {
		return nil, err
	}
	out := make([]byte, 0, Cells)
	for _, row := range codes {
		for _, c := range row {
			out = append(out, byte(c))
		}
	}
	return out, nil
}

// Reshape is the inverse of Flatten.  buf must hold exactly 64 codes
func Reshape(buf []byte) ([][]Code, error) {
	if len(buf) != Cells {
		return nil, fmt.Errorf("%w, got %d codes", ErrShape, len(buf))
	}
	out := make([][]Code, Rows)
	for r := 0; r < Rows; r++ {
		out[r] = make([]Code, Cols)
		for c := 0; c < Cols; c++ {
			out[r][c] = Code(buf[r*Cols+c])
		}
	}
	return out, nil
}

// Fill returns an 8x8 array with every cell equal to v
func Fill(v Value) [][]Value {
	out := make([][]Value, Rows)
	for r := range out {
		out[r] = make([]Value, Cols)
		for c := range out[r] {
			out[r][c] = v
		}
	}
	return out
}
