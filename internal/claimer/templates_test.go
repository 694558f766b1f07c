package claimer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

func TestService_Templates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	str := func(s string) *string { return &s }

	created, err := f.svc.CreateTemplate(ctx, &model.Template{Name: " standup ", Autor: "Jan", Uloha: str("INT-1"), Hodiny: str("0,25"), Minuty: str("")})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if created.Name != "standup" {
		t.Errorf("Name = %q, want trimmed", created.Name)
	}

	t.Run("validation", func(t *testing.T) {
		if _, err := f.svc.CreateTemplate(ctx, &model.Template{Autor: "Jan"}); !errors.Is(err, claimer.ErrValidation) {
			t.Errorf("CreateTemplate(no name) = %v, want validation error", err)
		}
		if _, err := f.svc.CreateTemplate(ctx, &model.Template{Name: "x"}); !errors.Is(err, claimer.ErrValidation) {
			t.Errorf("CreateTemplate(no author) = %v, want validation error", err)
		}
		if _, err := f.svc.CreateTemplate(ctx, &model.Template{Name: "x", Autor: "Jan", Hodiny: str("0"), Minuty: str("0")}); !errors.Is(err, claimer.ErrValidation) {
			t.Errorf("CreateTemplate(zero duration) = %v, want validation error", err)
		}
	})

	t.Run("scoped per author", func(t *testing.T) {
		got, err := f.svc.ListTemplates(ctx, "Jan")
		if err != nil || len(got) != 1 {
			t.Fatalf("ListTemplates(Jan) = %v, %v, want one", got, err)
		}
		got, err = f.svc.ListTemplates(ctx, "Eva")
		if err != nil || len(got) != 0 {
			t.Fatalf("ListTemplates(Eva) = %v, %v, want none", got, err)
		}
		if _, err := f.svc.ListTemplates(ctx, ""); !errors.Is(err, claimer.ErrValidation) {
			t.Errorf("ListTemplates(\"\") = %v, want validation error", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := f.svc.DeleteTemplate(ctx, "Eva", created.ID); !errors.Is(err, claimer.ErrNotFound) {
			t.Errorf("DeleteTemplate(other author) = %v, want not found", err)
		}
		if err := f.svc.DeleteTemplate(ctx, "", created.ID); !errors.Is(err, claimer.ErrOwnership) {
			t.Errorf("DeleteTemplate(no actor) = %v, want ownership error", err)
		}
		if err := f.svc.DeleteTemplate(ctx, "Jan", created.ID); err != nil {
			t.Fatalf("DeleteTemplate() error = %v", err)
		}
	})
}
