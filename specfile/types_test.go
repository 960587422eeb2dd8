package specfile

import "testing"

func TestRefSpec_LocalRef(t *testing.T) {
	tests := []struct {
		name string
		ref  RefSpec
		want string
	}{
		{
			name: "plain branch",
			ref:  RefSpec{Refspec: "main"},
			want: "loc-main",
		},
		{
			name: "pinned commit keeps the human-readable name",
			ref:  RefSpec{Refspec: "0123456789abcdef0123456789abcdef01234567", Type: Ref, PinnedName: "main"},
			want: "loc-main",
		},
		{
			name: "pull request ref",
			ref:  RefSpec{Refspec: "refs/pull/7/head"},
			want: "loc-refs/pull/7/head",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.LocalRef(); got != tt.want {
				t.Errorf("LocalRef() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlot_BaseAndMerges(t *testing.T) {
	slot := &Slot{
		Refs: []RefSpec{
			{Remote: "origin", Refspec: "main"},
			{Remote: "origin", Refspec: "refs/pull/7/head"},
			{Remote: "fork", Refspec: "feature"},
		},
	}

	base := slot.Base()
	if base.Refspec != "main" {
		t.Errorf("Base() = %+v, want the first declared reference", base)
	}

	merges := slot.Merges()
	if len(merges) != 2 {
		t.Fatalf("Merges() returned %d entries, want 2", len(merges))
	}
	if merges[0].Refspec != "refs/pull/7/head" || merges[1].Refspec != "feature" {
		t.Errorf("Merges() = %+v, want declaration order preserved", merges)
	}
}

func TestSlot_MergesEmptyWhenSingleRef(t *testing.T) {
	slot := &Slot{Refs: []RefSpec{{Remote: "origin", Refspec: "main"}}}
	if got := slot.Merges(); got != nil {
		t.Errorf("Merges() = %+v, want nil for a slot with no non-base refs", got)
	}
}
