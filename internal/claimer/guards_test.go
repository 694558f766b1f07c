package claimer

import (
	"errors"
	"testing"
)

func TestCanMutate(t *testing.T) {
	tests := []struct {
		name    string
		ctx     OwnershipContext
		allowed bool
	}{
		{"owner", OwnershipContext{Kind: "entry", ID: 1, Owner: "Jan", Actor: "Jan"}, true},
		{"owner with padding", OwnershipContext{Kind: "entry", ID: 1, Owner: "Jan", Actor: " Jan "}, true},
		{"someone else", OwnershipContext{Kind: "entry", ID: 1, Owner: "Jan", Actor: "Eva"}, false},
		{"case differs", OwnershipContext{Kind: "entry", ID: 1, Owner: "Jan", Actor: "jan"}, false},
		{"no actor", OwnershipContext{Kind: "entry", ID: 1, Owner: "Jan"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CanMutate(tt.ctx)
			if res.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v", res.Allowed, tt.allowed)
			}
			if !tt.allowed && !errors.Is(res.Err, ErrOwnership) {
				t.Errorf("Err = %v, want ownership error", res.Err)
			}
		})
	}
}
