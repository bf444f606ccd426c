// internal/sxml/repair.go
package sxml

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/arwahdevops/sxmlsync/internal/config"
	"github.com/arwahdevops/sxmlsync/internal/startwith"
)

// A Repair recognizes one known corruption pattern in raw markup and heals
// it into a fully re-parseable document. Generic error-tolerant parsing is
// deliberately out of scope; only cataloged patterns are touched.
type Repair struct {
	Name   string
	Detect func(raw string) bool
	Heal   func(ctx context.Context, raw string) (string, error)
}

// Repairer applies the catalog of known repairs, in order, at most one of
// which runs per reconciliation pass.
type Repairer struct {
	startWith startwith.Provider
	defaults  config.GeneratorDefaults
	log       *zap.Logger
}

func NewRepairer(provider startwith.Provider, defaults config.GeneratorDefaults, log *zap.Logger) *Repairer {
	if provider == nil {
		provider = startwith.Static{}
	}
	return &Repairer{
		startWith: provider,
		defaults:  defaults,
		log:       log.Named("sxml-repair"),
	}
}

func (r *Repairer) repairs() []Repair {
	return []Repair{
		{
			Name:   "unbalanced identity generator",
			Detect: detectUnbalancedIdentity,
			Heal:   r.healUnbalancedIdentity,
		},
	}
}

// Attempt runs the first repair whose detector matches and verifies that the
// healed markup re-parses. It returns the corrected markup and the repair
// name. When no detector matches, or healing fails, the error wraps
// ErrMalformedMetadata and no partial mutation is returned.
func (r *Repairer) Attempt(ctx context.Context, raw string) (string, string, error) {
	for _, rep := range r.repairs() {
		if !rep.Detect(raw) {
			continue
		}
		r.log.Debug("Known corruption pattern detected.", zap.String("repair", rep.Name))
		corrected, err := rep.Heal(ctx, raw)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s: %v", ErrMalformedMetadata, rep.Name, err)
		}
		if _, err := Parse(corrected); err != nil {
			return "", "", fmt.Errorf("%w: still not parseable after %s repair", ErrMalformedMetadata, rep.Name)
		}
		return corrected, rep.Name, nil
	}
	return "", "", fmt.Errorf("%w: no known repair applies", ErrMalformedMetadata)
}

const (
	identityOpenTag   = "<" + elemIdentity + ">"
	identityCloseTag  = "</" + elemIdentity + ">"
	schemaCloseMarker = "</SCHEMA>"
)

var (
	reRawSchema    = regexp.MustCompile(`<SCHEMA>(.*?)</SCHEMA>`)
	reRawTableName = regexp.MustCompile(`<NAME>(.*?)</NAME>`)
)

func detectUnbalancedIdentity(raw string) bool {
	return strings.Count(raw, identityOpenTag) > strings.Count(raw, identityCloseTag)
}

// healUnbalancedIdentity synthesizes the full default generator sub-block and
// inserts it right after the schema-name closing marker that follows the
// dangling opening tag. The document's schema/table identity has to be
// locatable syntactically even though the tree itself cannot be parsed yet.
func (r *Repairer) healUnbalancedIdentity(ctx context.Context, raw string) (string, error) {
	schemaMatch := reRawSchema.FindStringSubmatch(raw)
	tableMatch := reRawTableName.FindStringSubmatch(raw)
	if schemaMatch == nil || tableMatch == nil {
		return "", fmt.Errorf("schema/table markers not locatable")
	}
	schemaName, tableName := schemaMatch[1], tableMatch[1]

	startVal, err := r.startWith.StartWith(ctx, schemaName, tableName)
	if err != nil {
		// Repair must not depend on a live lookup; fall back to the
		// default policy.
		r.log.Warn("START_WITH lookup failed, using default value 1.",
			zap.String("schema", schemaName),
			zap.String("table", tableName),
			zap.Error(err))
		startVal = "1"
	}

	block := fmt.Sprintf("<%s>%s</%s><%s></%s><%s>%s</%s><%s>%s</%s><%s>%s</%s><%s>%s</%s><%s>%s</%s>%s",
		elemGeneration, r.defaults.Generation, elemGeneration,
		elemOnNull, elemOnNull,
		elemStartWith, startVal, elemStartWith,
		elemIncrement, r.defaults.Increment, elemIncrement,
		elemMinValue, r.defaults.MinValue, elemMinValue,
		elemMaxValue, r.defaults.MaxValue, elemMaxValue,
		elemCache, r.defaults.Cache, elemCache,
		identityCloseTag)

	openPos := strings.Index(raw, identityOpenTag)
	if openPos < 0 {
		return "", fmt.Errorf("identity opening tag not found")
	}
	schemaEnd := strings.Index(raw[openPos:], schemaCloseMarker)
	if schemaEnd < 0 {
		return "", fmt.Errorf("no schema closing marker after identity opening tag")
	}
	insertAt := openPos + schemaEnd + len(schemaCloseMarker)

	r.log.Info("Synthesized identity generator block.",
		zap.String("schema", schemaName),
		zap.String("table", tableName),
		zap.String("start_with", startVal))
	return raw[:insertAt] + block + raw[insertAt:], nil
}
