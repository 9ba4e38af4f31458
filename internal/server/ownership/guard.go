// Package ownership confirms that a caller-supplied resource identifier
// belongs to the caller before anything keyed by it is fetched.
package ownership

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
)

// IndexSource returns the caller's resource index: a JSON array of objects,
// each with an "id" field.
type IndexSource interface {
	Enrollments(ctx context.Context, credential, studentID string) (json.RawMessage, error)
}

// Guard checks resource ownership against a freshly fetched index. It keeps
// no cache; every call hits the index source.
type Guard struct {
	source IndexSource
	logger logging.Logger
}

func NewGuard(source IndexSource, logger logging.Logger) *Guard {
	return &Guard{source: source, logger: logger.With("module", "ownership_guard")}
}

// AssertOwned returns nil only when resourceID is listed in the caller's
// index. Any failure to obtain or read the index is reported as
// common.ErrForbidden, same as a missing id.
func (g *Guard) AssertOwned(ctx context.Context, caller auth.Caller, resourceID string) error {
	resourceID = strings.TrimSpace(resourceID)
	if caller.Subject == "" || resourceID == "" {
		return fmt.Errorf("ownership: missing caller or resource: %w", common.ErrForbidden)
	}

	raw, err := g.source.Enrollments(ctx, caller.UpstreamCredential, caller.Subject)
	if err != nil {
		g.logger.Warn(ctx, "ownership index unavailable", "subject", caller.Subject, "resource_id", resourceID, "error", err)
		return fmt.Errorf("ownership: index unavailable: %w", common.ErrForbidden)
	}

	ids, err := parseIndex(raw)
	if err != nil {
		g.logger.Warn(ctx, "ownership index unreadable", "subject", caller.Subject, "error", err)
		return fmt.Errorf("ownership: index unreadable: %w", common.ErrForbidden)
	}

	for _, id := range ids {
		if id == resourceID {
			return nil
		}
	}

	g.logger.Warn(ctx, "ownership denied", "subject", caller.Subject, "resource_id", resourceID)
	return fmt.Errorf("ownership: resource %q not owned: %w", resourceID, common.ErrForbidden)
}

// parseIndex extracts the id of every entry. Ids may be JSON numbers or
// strings; numbers keep their literal text so large ids are not rounded.
func parseIndex(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("index has trailing data")
	}
	if entries == nil {
		return nil, fmt.Errorf("index is not an array")
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		switch v := e["id"].(type) {
		case json.Number:
			ids = append(ids, v.String())
		case string:
			ids = append(ids, strings.TrimSpace(v))
		}
	}
	return ids, nil
}
