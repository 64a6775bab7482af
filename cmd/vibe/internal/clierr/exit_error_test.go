package clierr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 0, ExitCodeOf(nil))
	assert.Equal(t, CodeFailure, ExitCodeOf(errors.New("plain")))
	assert.Equal(t, CodeInvalidSpec, ExitCodeOf(New(CodeInvalidSpec, "bad")))
	assert.Equal(t, CodePolicy, ExitCodeOf(fmt.Errorf("outer: %w", New(CodePolicy, "denied"))))
	assert.Equal(t, CodeFailure, ExitCodeOf(New(0, "zero is not an error code")))
}

func TestWrap(t *testing.T) {
	err := Wrapf(CodeInvalidSpec, os.ErrNotExist, "loading %s", "skill.yaml")
	assert.Equal(t, "loading skill.yaml: file does not exist", err.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, CodeInvalidSpec, ExitCodeOf(err))

	assert.Equal(t, "no cause", Wrap(CodePolicy, "no cause", nil).Error())
}
