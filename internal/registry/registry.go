// Package registry implements the Model Registry & Artifact Store: an
// immutable, versioned, content-addressed repository of trained model
// artifacts with stage transitions and metadata/metric sidecars (spec §4.3).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/correlator-io/trainhub/internal/kinderr"
)

// Stage is a ModelVersion's lifecycle marker.
type Stage string

const (
	StageStaging    Stage = "staging"
	StageProduction Stage = "production"
	StageArchived   Stage = "archived"
)

func validStage(s Stage) bool {
	switch s {
	case StageStaging, StageProduction, StageArchived:
		return true
	default:
		return false
	}
}

// Metadata is a ModelVersion's metadata sidecar document.
type Metadata struct {
	Tenant         string         `json:"tenant"`
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	ModelSizeBytes int            `json:"model_size_bytes"`
	ModelTypeHint  string         `json:"model_type_hint"`
	Stage          Stage          `json:"stage"`
	ContentHash    string         `json:"content_hash"`
	CopiedFrom     string         `json:"copied_from,omitempty"`
	CopiedAt       *time.Time     `json:"copied_at,omitempty"`
	UserFields     map[string]any `json:"user_fields,omitempty"`
}

const (
	artifactFile = "model.bin"
	metadataFile = "metadata.json"
	metricsFile  = "metrics.json"
)

// gatewayAPI is the subset of *objectstore.Gateway the Registry depends on,
// named so tests can substitute a fake without a real S3 endpoint.
type gatewayAPI interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix, delimiter string) ([]string, []string, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, prefix string) ([]string, error)
}

// Registry is the Model Registry (spec §4.3). Registry exclusively writes
// ModelVersion rows and their sidecars (spec §3 Ownership).
type Registry struct {
	store gatewayAPI
}

// New constructs a Registry backed by store.
func New(store gatewayAPI) *Registry {
	return &Registry{store: store}
}

func versionPrefix(tenant, name, version string) string {
	return fmt.Sprintf("%s/%s/%s/", tenant, name, version)
}

// Register uploads a new ModelVersion: artifact blob, required metadata,
// and optional metrics, three independent writes per spec §4.3.
func (r *Registry) Register(
	ctx context.Context,
	tenant, name, version string,
	artifact []byte,
	modelTypeHint string,
	userFields map[string]any,
	metrics map[string]float64,
) (*Metadata, error) {
	hash := blake2b.Sum256(artifact)

	meta := &Metadata{
		Tenant:         tenant,
		Name:           name,
		Version:        version,
		UploadedAt:     time.Now().UTC(),
		ModelSizeBytes: len(artifact),
		ModelTypeHint:  modelTypeHint,
		Stage:          StageStaging,
		ContentHash:    fmt.Sprintf("%x", hash),
		UserFields:     userFields,
	}

	prefix := versionPrefix(tenant, name, version)

	if err := r.store.Put(ctx, prefix+artifactFile, artifact, "application/octet-stream"); err != nil {
		return nil, err
	}

	if err := r.putJSON(ctx, prefix+metadataFile, meta); err != nil {
		return nil, err
	}

	if metrics != nil {
		if err := r.putJSON(ctx, prefix+metricsFile, metrics); err != nil {
			return nil, err
		}
	}

	return meta, nil
}

// GetMetadata returns a version's metadata, or an empty Metadata and nil
// error if absent — sidecar lookups translate not-found to an empty
// sentinel so downstream aggregations degrade gracefully (spec §4.1).
func (r *Registry) GetMetadata(ctx context.Context, tenant, name, version string) (Metadata, error) {
	data, err := r.store.Get(ctx, versionPrefix(tenant, name, version)+metadataFile)
	if kinderr.Is(err, kinderr.NotFound) {
		return Metadata{}, nil
	}

	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return meta, nil
}

// GetMetrics returns a version's metrics, or an empty map if absent.
func (r *Registry) GetMetrics(ctx context.Context, tenant, name, version string) (map[string]float64, error) {
	data, err := r.store.Get(ctx, versionPrefix(tenant, name, version)+metricsFile)
	if kinderr.Is(err, kinderr.NotFound) {
		return map[string]float64{}, nil
	}

	if err != nil {
		return nil, err
	}

	var metrics map[string]float64
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}

	return metrics, nil
}

// GetArtifact returns a version's model artifact bytes.
func (r *Registry) GetArtifact(ctx context.Context, tenant, name, version string) ([]byte, error) {
	return r.store.Get(ctx, versionPrefix(tenant, name, version)+artifactFile)
}

// ListVersions enumerates version prefixes under tenant/name, sorted by
// uploaded_at descending (spec §4.3).
func (r *Registry) ListVersions(ctx context.Context, tenant, name string) ([]Metadata, error) {
	_, prefixes, err := r.store.List(ctx, fmt.Sprintf("%s/%s/", tenant, name), "/")
	if err != nil {
		return nil, err
	}

	versions := make([]Metadata, 0, len(prefixes))

	for _, p := range prefixes {
		version := extractVersion(p)

		meta, err := r.GetMetadata(ctx, tenant, name, version)
		if err != nil {
			return nil, err
		}

		if meta.Version == "" {
			continue
		}

		versions = append(versions, meta)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].UploadedAt.After(versions[j].UploadedAt) })

	return versions, nil
}

func extractVersion(prefix string) string {
	// prefix looks like "tenant/name/version/"
	trimmed := prefix
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}

	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] == '/' {
			return trimmed[i+1:]
		}
	}

	return trimmed
}

// Promote validates target stage and mutates the metadata sidecar's stage
// field in place, a registry read-modify-write. Promotion does not copy
// artifacts (spec §4.3).
func (r *Registry) Promote(ctx context.Context, tenant, name, version string, target Stage) error {
	if !validStage(target) {
		return kinderr.New(kinderr.Validation, fmt.Sprintf("unknown stage %q", target))
	}

	meta, err := r.GetMetadata(ctx, tenant, name, version)
	if err != nil {
		return err
	}

	if meta.Version == "" {
		return kinderr.New(kinderr.NotFound, fmt.Sprintf("version %s/%s/%s not found", tenant, name, version))
	}

	meta.Stage = target

	return r.putJSON(ctx, versionPrefix(tenant, name, version)+metadataFile, meta)
}

// Copy creates a new version that duplicates all sidecars of src under dst,
// rewriting the target's metadata with version=dst, copied_from=src,
// copied_at=now.
//
// This reads source metadata FIRST, copies all keys, then derives and
// writes the target's metadata from the SOURCE metadata already in hand —
// fixing the read-order bug recorded in the spec's Open Questions, where
// the source implementation instead reads the (necessarily empty) target
// metadata before the copy and loses every field from the original.
func (r *Registry) Copy(ctx context.Context, tenant, name, srcVersion, dstVersion string) (*Metadata, error) {
	srcMeta, err := r.GetMetadata(ctx, tenant, name, srcVersion)
	if err != nil {
		return nil, err
	}

	if srcMeta.Version == "" {
		return nil, kinderr.New(kinderr.NotFound, fmt.Sprintf("source version %s not found", srcVersion))
	}

	srcPrefix := versionPrefix(tenant, name, srcVersion)
	dstPrefix := versionPrefix(tenant, name, dstVersion)

	for _, file := range []string{artifactFile, metadataFile, metricsFile} {
		if err := r.store.Copy(ctx, srcPrefix+file, dstPrefix+file); err != nil {
			if kinderr.Is(err, kinderr.NotFound) && file == metricsFile {
				continue // metrics sidecar is optional
			}

			return nil, err
		}
	}

	now := time.Now().UTC()
	dstMeta := srcMeta
	dstMeta.Version = dstVersion
	dstMeta.CopiedFrom = srcVersion
	dstMeta.CopiedAt = &now

	if err := r.putJSON(ctx, dstPrefix+metadataFile, dstMeta); err != nil {
		return nil, err
	}

	return &dstMeta, nil
}

// Delete removes a version's sidecars. If the current stage is production
// and force is false, fails with precondition (spec §4.3).
func (r *Registry) Delete(ctx context.Context, tenant, name, version string, force bool) ([]string, error) {
	meta, err := r.GetMetadata(ctx, tenant, name, version)
	if err != nil {
		return nil, err
	}

	if meta.Stage == StageProduction && !force {
		return nil, kinderr.New(kinderr.Precondition, "refusing to delete production version without force=true")
	}

	return r.store.Delete(ctx, versionPrefix(tenant, name, version))
}

func (r *Registry) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	return r.store.Put(ctx, key, data, "application/json")
}
