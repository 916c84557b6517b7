package services

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"integer", "42", 42, false},
		{"decimal", "12.75", 12.75, false},
		{"surrounding spaces", "  3.5 ", 3.5, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"negative", "-1", 0, true},
		{"thousands separator", "1,000", 0, true},
		{"trailing garbage", "12abc", 0, true},
		{"word", "ten", 0, true},
		{"exponent", "1.5e2", 150, false},
		{"zero with tiny exponent", "0e-500", 0, false},
		{"overflows float64", "1e400", 0, true},
		{"underflows to zero", "1e-400", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity("estimated_quantity", tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuantity) {
					t.Fatalf("ParseQuantity(%q) error = %v, want ErrInvalidQuantity", tt.input, err)
				}
				var e *Error
				if errors.As(err, &e) && e.Field != "estimated_quantity" {
					t.Errorf("error field = %q, want estimated_quantity", e.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuantity(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuantity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSumQuantities(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"integers", []float64{10, 5}, 15},
		{"no float drift", []float64{0.1, 0.2}, 0.3},
		{"many cents", []float64{1.01, 2.02, 3.03, 4.04}, 10.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sumQuantities(tt.values); got != tt.want {
				t.Errorf("sumQuantities(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{newError("op", "", ErrInvalidQuantity), KindValidation},
		{fieldError("op", "", "notes", ErrReadOnlyField), KindValidation},
		{newError("op", "", ErrReadOnlyEntry), KindValidation},
		{newError("op", "", ErrSheetNotFound), KindNotFound},
		{newError("op", "", ErrUnknownSectionNumber), KindNotFound},
		{newError("op", "", ErrDuplicateOverride), KindConflict},
		{newError("op", "", ErrConcurrentRevisionConflict), KindConflict},
		{newError("op", "", ErrNoSheetsSelected), KindExport},
		{errors.New("disk on fire"), KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := fieldError("UpdateEntry", "abc", "estimated_quantity", ErrReadOnlyField)
	want := `UpdateEntry: field is read-only (field "estimated_quantity") [abc]`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCheckQuantity(t *testing.T) {
	tests := []struct {
		name    string
		v       float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"positive", 12.5, false},
		{"negative", -0.5, true},
		{"NaN", math.NaN(), true},
		{"+Inf", math.Inf(1), true},
		{"-Inf", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkQuantity("CreateEntry", "s1", "estimated_quantity", tt.v)
			if tt.wantErr != errors.Is(err, ErrInvalidQuantity) {
				t.Errorf("checkQuantity(%v) error = %v, wantErr %v", tt.v, err, tt.wantErr)
			}
		})
	}
}

func TestQuantityText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  QuantityText
	}{
		{`12.5`, "12.5"},
		{`"12.5"`, "12.5"},
		{`1e400`, "1e400"},
		{`"abc"`, "abc"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var got struct {
			Q QuantityText `json:"q"`
		}
		if err := json.Unmarshal([]byte(`{"q":`+tt.input+`}`), &got); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", tt.input, err)
			continue
		}
		if got.Q != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, got.Q, tt.want)
		}
	}
}
