package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"mingmong/internal/common/errors"
)

func TestErrorFormatting(t *testing.T) {
	err := errors.AuthError("invalid signature").
		WithCode("sig_mismatch").
		WithContext("transport", "pixel")

	msg := err.Error()
	assert.Contains(t, msg, "authentication")
	assert.Contains(t, msg, "invalid signature")
	assert.Contains(t, msg, "code=sig_mismatch")
	assert.Contains(t, msg, "transport=pixel")
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := errors.ProvisioningError("ACME exchange failed", cause)

	assert.True(t, stderrors.Is(err, cause))
}

func TestTypeInspection(t *testing.T) {
	assert.True(t, errors.IsType(errors.FormatError("bad json"), errors.ErrTypeFormat))
	assert.True(t, errors.IsType(errors.TypeError("not a ping"), errors.ErrTypeMessageType))
	assert.True(t, errors.IsType(errors.UnknownRouteError("/admin"), errors.ErrTypeUnknownRoute))
	assert.False(t, errors.IsType(nil, errors.ErrTypeFormat))
	assert.False(t, errors.IsType(stderrors.New("plain"), errors.ErrTypeFormat))

	assert.Equal(t, errors.ErrTypeTimeout, errors.GetType(errors.TimeoutError("certificate issuance")))
	assert.Equal(t, errors.ErrTypeInternal, errors.GetType(stderrors.New("plain")))
	assert.Equal(t, errors.ErrorType(""), errors.GetType(nil))
}
