// Package storage implements ports.ObjectStorage on the local filesystem and
// on S3-compatible object stores.
package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/99minutos/upload-gateway/internal/infrastructure/storage")

// idPattern accepts the ids this package generates: a uuid plus an optional short extension.
var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[A-Za-z0-9]{1,16})?$`)

// newObjectID returns a fresh id keeping the original file extension.
func newObjectID(name string) string {
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 1 && idPattern.MatchString(id+ext) {
		return id + ext
	}
	return id
}

func validID(id string) bool {
	return idPattern.MatchString(id)
}
