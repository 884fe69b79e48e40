package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKindAndReason(t *testing.T) {
	err := fmt.Errorf("create account: %w", ErrUsernameConflict)

	assert.ErrorIs(t, err, ErrUsernameConflict)
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrEmailConflict)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "username_not_available", ReasonOf(err))
}

func TestInternalWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause, "could not create group for session %d", 7)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "could not create group for session 7: connection refused", err.Error())
}

func TestSecondaryKeepsPrimaryVisible(t *testing.T) {
	primary := Internal(errors.New("add failed"), "group g2")
	var rollback *multierror.Error
	rollback = multierror.Append(rollback, errors.New("remove failed"))

	err := Secondary(primary, rollback)

	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, KindSecondary, KindOf(err))
	var sec *SecondaryError
	assert.ErrorAs(t, err, &sec)
	assert.Len(t, sec.Rollback.Errors, 1)
}

func TestSecondaryNilWhenRollbackSucceeded(t *testing.T) {
	assert.Nil(t, Secondary(errors.New("x"), nil))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindConflict, KindOf(Conflict("enquiry_exists", "x")))
}
