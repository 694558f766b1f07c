package claimer

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsRemoteError(t *testing.T) {
	t.Run("classifies a rejection without touching the cause", func(t *testing.T) {
		upstream := &RemoteError{Service: "metaapp", Detail: "User with login jnovak does not exist"}

		err := asRemoteError("metaapp", fmt.Errorf("insert: %w", upstream))
		var rerr *RemoteError
		if !errors.As(err, &rerr) {
			t.Fatalf("asRemoteError() = %v, want *RemoteError", err)
		}
		if !rerr.Rejected {
			t.Error("Rejected = false, want true")
		}
		if rerr == upstream {
			t.Error("asRemoteError() returned the upstream value")
		}
		if upstream.Rejected {
			t.Error("upstream error was modified")
		}
	})

	t.Run("keeps an already classified error", func(t *testing.T) {
		upstream := &RemoteError{Service: "metaapp", Detail: "connection refused"}
		err := asRemoteError("metaapp", upstream)
		if err != upstream {
			t.Errorf("asRemoteError() = %v, want the same value", err)
		}
	})

	t.Run("wraps plain errors", func(t *testing.T) {
		err := asRemoteError("metaapp", errors.New("No uloha found for epic tag X"))
		var rerr *RemoteError
		if !errors.As(err, &rerr) || !rerr.Rejected || rerr.Service != "metaapp" {
			t.Errorf("asRemoteError() = %#v", err)
		}
	})
}
