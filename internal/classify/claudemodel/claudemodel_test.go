package claudemodel

import (
	"math"
	"testing"

	"github.com/linnemanlabs/railtriage/internal/complaint"
)

func TestParseDistribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantTop complaint.Category
		wantErr bool
	}{
		{
			name:    "plain json",
			raw:     `{"cleanliness":0.1,"maintenance":0.7,"safety":0.1,"staff":0.05,"other":0.05}`,
			wantTop: complaint.CategoryMaintenance,
		},
		{
			name:    "fenced json",
			raw:     "```json\n{\"safety\":0.9,\"other\":0.1}\n```",
			wantTop: complaint.CategorySafety,
		},
		{
			name:    "unnormalized mass is renormalized",
			raw:     `{"cleanliness":2,"maintenance":1}`,
			wantTop: complaint.CategoryCleanliness,
		},
		{name: "not json", raw: "the category is maintenance", wantErr: true},
		{name: "all zero", raw: `{"cleanliness":0}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dist, err := parseDistribution(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDistribution() error = %v", err)
			}

			var total float64
			for _, p := range dist {
				total += p
			}
			if math.Abs(total-1) > 1e-9 {
				t.Errorf("total mass = %v, want 1", total)
			}

			if top, _ := dist.Top(); top != tt.wantTop {
				t.Errorf("top = %q, want %q", top, tt.wantTop)
			}
		})
	}
}
