package pagination

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{"defaults", 0, 0, 1, DefaultLimit},
		{"negative page", -3, 25, 1, 25},
		{"limit capped", 2, 500, 2, MaxLimit},
		{"valid values", 4, 50, 4, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.page, tt.limit)
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	p := New(3, 10)
	if got := p.Offset(); got != 20 {
		t.Errorf("Offset() = %d, want 20", got)
	}
}

func TestNewResult(t *testing.T) {
	t.Run("carries the filtered total", func(t *testing.T) {
		r := NewResult([]int{1, 2, 3}, 31, New(2, 10))
		if r.Total != 31 {
			t.Errorf("Total = %d, want 31", r.Total)
		}
		if r.Page != 2 || r.Limit != 10 {
			t.Errorf("Page/Limit = %d/%d, want 2/10", r.Page, r.Limit)
		}
	})

	t.Run("nil items become empty slice", func(t *testing.T) {
		r := NewResult[int](nil, 0, New(1, 10))
		if r.Items == nil {
			t.Error("Items should be an empty slice, not nil")
		}
	})
}

func TestSortOption_Parse(t *testing.T) {
	opt := NewSortOption(map[string]string{
		"createdAt": "created_at",
		"title":     "title",
	})

	sql := opt.Parse("-createdAt,title,bogus").SQL()
	want := "created_at DESC, title ASC"
	if sql != want {
		t.Errorf("SQL() = %q, want %q", sql, want)
	}
}

func TestSortOption_SQLWithDefault(t *testing.T) {
	opt := NewSortOption(map[string]string{"title": "title"})
	if got := opt.Parse("").SQLWithDefault("created_at DESC"); got != "created_at DESC" {
		t.Errorf("SQLWithDefault() = %q, want %q", got, "created_at DESC")
	}
}

func TestMap(t *testing.T) {
	in := NewResult([]int{1, 2, 3}, 3, New(1, 10))
	out := Map(in, func(v int) int { return v * 2 })

	if len(out.Items) != 3 || out.Items[2] != 6 {
		t.Errorf("Map() items = %v, want [2 4 6]", out.Items)
	}
	if out.Total != in.Total || out.Page != in.Page || out.Limit != in.Limit {
		t.Error("Map() should preserve the pagination envelope")
	}
}
