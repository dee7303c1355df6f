package testutil

import "testing"

// Given, When and Then name nested subtests so scenario tests read as
// sentences in `go test -v` output.
func Given(t *testing.T, context string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+context, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+outcome, fn)
}
