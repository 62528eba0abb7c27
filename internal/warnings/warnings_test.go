package warnings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoneReportsNoWarnings(t *testing.T) {
	var r Registry = None{}
	assert.Empty(t, r.Warnings())
}

type fakeRegistry struct{ warnings []string }

func (f fakeRegistry) Warnings() []string { return f.warnings }

func TestRegistryInterfaceAcceptsCustomImplementation(t *testing.T) {
	var r Registry = fakeRegistry{warnings: []string{"unused import: foo"}}
	assert.Len(t, r.Warnings(), 1)
}
