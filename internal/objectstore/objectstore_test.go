package objectstore

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func newResponseError(status int) *smithyhttp.ResponseError {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
	}
}

func TestKeyLayout_JoinsPartsInOrder(t *testing.T) {
	assert.Equal(t, "acme/forecast/v1/model.bin", KeyLayout("acme", "forecast", "v1", "model.bin"))
}

func TestIsNotFoundErr_TypedNoSuchKey(t *testing.T) {
	assert.True(t, isNotFoundErr(&types.NoSuchKey{}))
}

func TestIsNotFoundErr_TypedNotFound(t *testing.T) {
	assert.True(t, isNotFoundErr(&types.NotFound{}))
}

func TestIsNotFoundErr_SmithyResponseError404(t *testing.T) {
	assert.True(t, isNotFoundErr(newResponseError(404)))
}

func TestIsNotFoundErr_SmithyResponseErrorOtherStatus(t *testing.T) {
	assert.False(t, isNotFoundErr(newResponseError(500)))
}

func TestIsNotFoundErr_FallsBackToMessageSniffing(t *testing.T) {
	assert.True(t, isNotFoundErr(errors.New("NoSuchKey: the key does not exist")))
	assert.False(t, isNotFoundErr(errors.New("access denied")))
}
