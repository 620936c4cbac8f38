package codec

import (
	"errors"
	"testing"
)

func patterned() [][]Code {
	m := make([][]Code, Rows)
	for r := range m {
		m[r] = make([]Code, Cols)
		for c := range m[r] {
			m[r][c] = Code((r*Cols + c) % 3)
		}
	}
	return m
}

func TestFlattenIsRowMajor(t *testing.T) {
	m := patterned()
	flat, err := Flatten(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != Cells {
		t.Fatalf("expected %d codes, got %d", Cells, len(flat))
	}
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if flat[Cols*r+c] != byte(m[r][c]) {
				t.Errorf("index %d: expected %d got %d", Cols*r+c, m[r][c], flat[Cols*r+c])
			}
		}
	}
}

func TestReshapeInvertsFlatten(t *testing.T) {
	m := patterned()
	flat, _ := Flatten(m)
	back, err := Reshape(flat)
	if err != nil {
		t.Fatal(err)
	}
	for r := range m {
		for c := range m[r] {
			if back[r][c] != m[r][c] {
				t.Errorf("(%d,%d): expected %s got %s", r, c, m[r][c], back[r][c])
			}
		}
	}
}

func TestShapeErrors(t *testing.T) {
	short := patterned()[:7]
	narrow := patterned()
	narrow[3] = narrow[3][:7]
	wide := patterned()
	wide[7] = append(wide[7], NoOp)
	tall := append(patterned(), make([]Code, Cols))
	for name, m := range map[string][][]Code{"7x8": short, "ragged 8x7": narrow, "ragged 8x9": wide, "9x8": tall, "empty": nil} {
		if _, err := Flatten(m); !errors.Is(err, ErrShape) {
			t.Errorf("%s: expected ErrShape, got %v", name, err)
		}
	}
	if _, err := Reshape(make([]byte, 63)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape for 63 codes, got %v", err)
	}
}

func TestEncodeMatrix(t *testing.T) {
	vals := Fill(Set)
	vals[2][5] = Reset
	codes, err := EncodeMatrix(vals, ResetContext)
	if err != nil {
		t.Fatal(err)
	}
	if codes[0][0] != ActR {
		t.Errorf("expected %s got %s", ActR, codes[0][0])
	}
	if codes[2][5] != ActRb {
		t.Errorf("expected %s got %s", ActRb, codes[2][5])
	}
	vals[4][4] = 3
	if _, err := EncodeMatrix(vals, SetContext); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := EncodeMatrix(vals[:5], SetContext); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}
