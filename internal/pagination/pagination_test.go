package pagination

import "testing"

func TestPageRequestDefaults(t *testing.T) {
	tests := []struct {
		name         string
		in           PageRequest
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{"zero_values", PageRequest{}, 1, DefaultPageSize, 0},
		{"explicit", PageRequest{Page: 3, PageSize: 10}, 3, 10, 20},
		{"clamped", PageRequest{Page: -1, PageSize: 1000}, 1, MaxPageSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Defaults()
			if tt.in.Page != tt.wantPage || tt.in.PageSize != tt.wantPageSize {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantPage, tt.wantPageSize, tt.in.Page, tt.in.PageSize)
			}
			if tt.in.Offset() != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, tt.in.Offset())
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 1, 20, 41)
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %v", resp.Data)
	}
}
