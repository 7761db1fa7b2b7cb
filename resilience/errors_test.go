package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	cause := errors.New("refresh rejected")
	err := fmt.Errorf("refresh: %w", Permanent(cause))

	if !IsPermanent(err) {
		t.Error("IsPermanent() = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Error() != "refresh: refresh rejected" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsPermanent(cause) {
		t.Error("IsPermanent(cause) = true, want false")
	}
}
