package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

// fakeGateway is an in-memory stand-in for *objectstore.Gateway.
type fakeGateway struct {
	objects map[string][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: make(map[string][]byte)}
}

func (f *fakeGateway) Put(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = append([]byte(nil), data...)

	return nil
}

func (f *fakeGateway) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, kinderr.New(kinderr.NotFound, "key not found: "+key)
	}

	return data, nil
}

func (f *fakeGateway) List(_ context.Context, prefix, _ string) ([]string, []string, error) {
	prefixes := map[string]bool{}

	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			prefixes[prefix+rest[:i+1]] = true
		}
	}

	out := make([]string, 0, len(prefixes))
	for p := range prefixes {
		out = append(out, p)
	}

	return nil, out, nil
}

func (f *fakeGateway) Copy(_ context.Context, src, dst string) error {
	data, ok := f.objects[src]
	if !ok {
		return kinderr.New(kinderr.NotFound, "key not found: "+src)
	}

	f.objects[dst] = append([]byte(nil), data...)

	return nil
}

func (f *fakeGateway) Delete(_ context.Context, prefix string) ([]string, error) {
	var deleted []string

	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			deleted = append(deleted, key)
			delete(f.objects, key)
		}
	}

	return deleted, nil
}

func TestRegister_WritesArtifactMetadataAndMetrics(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	meta, err := reg.Register(
		context.Background(), "acme", "forecast", "v1",
		[]byte("model-bytes"), "forecast", map[string]any{"owner": "ml-team"},
		map[string]float64{"mae": 10},
	)

	require.NoError(t, err)
	assert.Equal(t, StageStaging, meta.Stage)
	assert.NotEmpty(t, meta.ContentHash)
	assert.Equal(t, 11, meta.ModelSizeBytes)

	fetched, err := reg.GetMetadata(context.Background(), "acme", "forecast", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", fetched.Version)

	metrics, err := reg.GetMetrics(context.Background(), "acme", "forecast", "v1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, metrics["mae"])
}

func TestGetMetadata_AbsentReturnsEmptySentinel(t *testing.T) {
	reg := New(newFakeGateway())

	meta, err := reg.GetMetadata(context.Background(), "acme", "forecast", "v404")

	require.NoError(t, err)
	assert.Equal(t, Metadata{}, meta)
}

func TestPromote_RejectsUnknownStage(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	_, err := reg.Register(context.Background(), "acme", "forecast", "v1", []byte("x"), "forecast", nil, nil)
	require.NoError(t, err)

	err = reg.Promote(context.Background(), "acme", "forecast", "v1", Stage("bogus"))
	require.Error(t, err)
	assert.Equal(t, kinderr.Validation, kinderr.Of(err))
}

func TestPromote_UnknownVersionNotFound(t *testing.T) {
	reg := New(newFakeGateway())

	err := reg.Promote(context.Background(), "acme", "forecast", "v404", StageProduction)

	require.Error(t, err)
	assert.Equal(t, kinderr.NotFound, kinderr.Of(err))
}

func TestPromote_UpdatesStage(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	_, err := reg.Register(context.Background(), "acme", "forecast", "v1", []byte("x"), "forecast", nil, nil)
	require.NoError(t, err)

	require.NoError(t, reg.Promote(context.Background(), "acme", "forecast", "v1", StageProduction))

	meta, err := reg.GetMetadata(context.Background(), "acme", "forecast", "v1")
	require.NoError(t, err)
	assert.Equal(t, StageProduction, meta.Stage)
}

func TestDelete_RefusesProductionWithoutForce(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	_, err := reg.Register(context.Background(), "acme", "forecast", "v1", []byte("x"), "forecast", nil, nil)
	require.NoError(t, err)
	require.NoError(t, reg.Promote(context.Background(), "acme", "forecast", "v1", StageProduction))

	_, err = reg.Delete(context.Background(), "acme", "forecast", "v1", false)
	require.Error(t, err)
	assert.Equal(t, kinderr.Precondition, kinderr.Of(err))

	deleted, err := reg.Delete(context.Background(), "acme", "forecast", "v1", true)
	require.NoError(t, err)
	assert.NotEmpty(t, deleted)
}

func TestCopy_PreservesSourceMetadataFields(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	_, err := reg.Register(
		context.Background(), "acme", "forecast", "v1",
		[]byte("x"), "forecast", map[string]any{"owner": "ml-team"}, map[string]float64{"mae": 5},
	)
	require.NoError(t, err)

	dst, err := reg.Copy(context.Background(), "acme", "forecast", "v1", "v2")
	require.NoError(t, err)

	assert.Equal(t, "v2", dst.Version)
	assert.Equal(t, "v1", dst.CopiedFrom)
	assert.Equal(t, map[string]any{"owner": "ml-team"}, dst.UserFields)
	require.NotNil(t, dst.CopiedAt)
}

func TestCopy_UnknownSourceNotFound(t *testing.T) {
	reg := New(newFakeGateway())

	_, err := reg.Copy(context.Background(), "acme", "forecast", "v404", "v2")

	require.Error(t, err)
	assert.Equal(t, kinderr.NotFound, kinderr.Of(err))
}

func TestListVersions_SortedByUploadedAtDescending(t *testing.T) {
	gw := newFakeGateway()
	reg := New(gw)

	_, err := reg.Register(context.Background(), "acme", "forecast", "v1", []byte("x"), "forecast", nil, nil)
	require.NoError(t, err)
	_, err = reg.Register(context.Background(), "acme", "forecast", "v2", []byte("y"), "forecast", nil, nil)
	require.NoError(t, err)

	versions, err := reg.ListVersions(context.Background(), "acme", "forecast")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].UploadedAt.Before(versions[1].UploadedAt))
}
