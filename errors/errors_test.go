package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatWithLocation(t *testing.T) {
	err := New(E2001, "undefined variable %q", "x")
	err.Filename = "app.doof"
	err.Line = 3
	err.Column = 7
	assert.Equal(t, "compile error: undefined variable \"x\"\n\nlocation: app.doof:3:7", err.Error())
}

func TestErrorFormatWithoutLocation(t *testing.T) {
	err := New(E2008, "too many constants")
	assert.Equal(t, "compile error: too many constants", err.Error())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "undefined variable", Describe(E2001))
	assert.Equal(t, "jump offset out of range", Describe(E2005))
	assert.Empty(t, Describe(ErrorCode("E9999")))
}
