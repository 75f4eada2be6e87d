package domain

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 15, 999} {
		got, err := DecodeCursor(EncodeCursor(offset))
		if err != nil {
			t.Fatalf("offset %d: unexpected error: %v", offset, err)
		}
		if got != offset {
			t.Errorf("expected %d, got %d", offset, got)
		}
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, c := range []string{"!!!", EncodeCursor(-1), "YWJj"} {
		if _, err := DecodeCursor(c); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("expected ErrInvalidCursor for cursor %q, got %v", c, err)
		}
	}
	if off, err := DecodeCursor(""); err != nil || off != 0 {
		t.Errorf("empty cursor should be offset 0, got %d, %v", off, err)
	}
}

func TestListParams_WindowInvalidCursor(t *testing.T) {
	for _, p := range []ListParams{{After: "!!"}, {Before: "YWJj"}} {
		if _, _, err := p.Window(); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("expected ErrInvalidCursor for %+v, got %v", p, err)
		}
	}
}

func TestListParams_Window(t *testing.T) {
	tests := []struct {
		name       string
		params     ListParams
		wantOffset int
		wantLimit  int
	}{
		{"defaults", ListParams{}, 0, DefaultPageSize},
		{"capped limit", ListParams{Limit: 5000}, 0, MaxPageSize},
		{"after", ListParams{Limit: 10, After: EncodeCursor(20)}, 20, 10},
		{"before", ListParams{Limit: 10, Before: EncodeCursor(20)}, 10, 10},
		{"before clamps at zero", ListParams{Limit: 10, Before: EncodeCursor(4)}, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit, err := tt.params.Window()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if offset != tt.wantOffset || limit != tt.wantLimit {
				t.Errorf("got offset %d limit %d, want %d %d", offset, limit, tt.wantOffset, tt.wantLimit)
			}
		})
	}
}

func TestNewPaging(t *testing.T) {
	tests := []struct {
		name                    string
		total, offset, returned int
		wantBefore, wantAfter   bool
	}{
		{"single page", 3, 0, 3, false, false},
		{"first of many", 40, 0, 15, false, true},
		{"middle", 40, 15, 15, true, true},
		{"last", 40, 30, 10, true, false},
		{"empty but total set", 1, 0, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaging(tt.total, tt.offset, tt.returned)
			if p.Total != tt.total {
				t.Errorf("total = %d, want %d", p.Total, tt.total)
			}
			if (p.Before != "") != tt.wantBefore || (p.After != "") != tt.wantAfter {
				t.Errorf("unexpected cursors: %+v", p)
			}
		})
	}

	p := NewPaging(40, 15, 15)
	if off, _ := DecodeCursor(p.After); off != 30 {
		t.Errorf("after cursor should point at 30, got %d", off)
	}
	if off, _ := DecodeCursor(p.Before); off != 15 {
		t.Errorf("before cursor should point at 15, got %d", off)
	}
}
