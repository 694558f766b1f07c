package claimer

import "strings"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Err     error
}

// OwnershipContext provides context for mutation guards.
type OwnershipContext struct {
	Kind  string // "entry" or "template"
	ID    int64
	Owner string
	Actor string
}

// CanMutate evaluates whether actor may edit, duplicate or delete a record.
// Rules:
// - The acting author must be declared
// - It must equal the record's author
func CanMutate(ctx OwnershipContext) GuardResult {
	actor := strings.TrimSpace(ctx.Actor)
	if actor == "" || actor != strings.TrimSpace(ctx.Owner) {
		return GuardResult{
			Allowed: false,
			Err:     &OwnershipError{Kind: ctx.Kind, ID: ctx.ID, Owner: ctx.Owner, Actor: actor},
		}
	}
	return GuardResult{Allowed: true}
}
