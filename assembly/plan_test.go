package assembly

import (
	"slices"
	"testing"

	"github.com/franzpoize/bl/specfile"
)

func TestPlanClone(t *testing.T) {
	tests := []struct {
		name     string
		slotName string
		slot     *specfile.Slot
		want     []string
	}{
		{
			name:     "single ref is shallow and sparse",
			slotName: "a",
			slot: &specfile.Slot{
				Remotes: map[string]string{"o": "https://example.com/org/repo.git"},
				Refs:    []specfile.RefSpec{{Remote: "o", Refspec: "main", Type: specfile.Branch}},
			},
			want: []string{"clone", "--filter=tree:0", "--depth", "1", "--sparse", "--origin", "o", "--branch", "main", "https://example.com/org/repo.git"},
		},
		{
			name:     "multiple refs are deep but still sparse",
			slotName: "a",
			slot: &specfile.Slot{
				Remotes: map[string]string{"o": "https://example.com/org/repo.git"},
				Refs: []specfile.RefSpec{
					{Remote: "o", Refspec: "main", Type: specfile.Branch},
					{Remote: "o", Refspec: "refs/pull/7/head", Type: specfile.PR},
				},
			},
			want: []string{"clone", "--filter=tree:0", "--sparse", "--origin", "o", "--branch", "main", "https://example.com/org/repo.git"},
		},
		{
			name:     "commit base uses --revision",
			slotName: "a",
			slot: &specfile.Slot{
				Remotes: map[string]string{"o": "https://example.com/org/repo.git"},
				Refs:    []specfile.RefSpec{{Remote: "o", Refspec: "0123456789abcdef0123456789abcdef01234567", Type: specfile.Ref}},
			},
			want: []string{"clone", "--filter=tree:0", "--depth", "1", "--sparse", "--revision", "0123456789abcdef0123456789abcdef01234567", "https://example.com/org/repo.git"},
		},
		{
			name:     "odoo slot is always shallow and not sparse without locales",
			slotName: "odoo",
			slot: &specfile.Slot{
				Remotes: map[string]string{"o": "https://example.com/org/odoo.git"},
				Refs: []specfile.RefSpec{
					{Remote: "o", Refspec: "main", Type: specfile.Branch},
					{Remote: "o", Refspec: "extra", Type: specfile.Branch},
				},
			},
			want: []string{"clone", "--filter=tree:0", "--depth", "1", "--origin", "o", "--branch", "main", "https://example.com/org/odoo.git"},
		},
		{
			name:     "odoo slot with locales is sparse",
			slotName: "odoo",
			slot: &specfile.Slot{
				Remotes: map[string]string{"o": "https://example.com/org/odoo.git"},
				Refs:    []specfile.RefSpec{{Remote: "o", Refspec: "main", Type: specfile.Branch}},
				Locales: []string{"fr_FR"},
			},
			want: []string{"clone", "--filter=tree:0", "--depth", "1", "--sparse", "--origin", "o", "--branch", "main", "https://example.com/org/odoo.git"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanClone(tt.slotName, tt.slot)
			if !slices.Equal(got, tt.want) {
				t.Errorf("PlanClone() = %v, want %v", got, tt.want)
			}
		})
	}
}
