// Package manifest implements C1: parsing and validation of per-plugin
// descriptors into a typed models.PluginManifest.
//
// Validation is a pure function: given untyped decoded data, it returns
// either a valid manifest or a precise AppError distinguishing missing
// field, wrong type, unknown permission, unknown category, or a malformed
// cross-plugin entry. Validate and ParseAndValidate have no side effects —
// no filesystem or network IO; reading manifest files off disk is done by
// Discover (discover.go) or by the caller.
package manifest

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/models"
	"github.com/waveform-labs/pluginhost/internal/plugins"
)

// validate is the singleton struct-tag validator instance, matching the
// one-validator-per-process convention used elsewhere for request bodies.
var validate = validator.New()

// knownCrossPluginWildcard grants every request-channel name the callee
// registers via handleRequest; request names are plugin-defined rather than
// part of the closed dispatch vocabulary, so "*" is the only way to declare
// blanket access to them.
var knownCrossPluginWildcard = "*"

// knownDispatchMethods is the closed vocabulary of dispatchable method names
// a cross_plugin_access entry may reference, built from C8's dispatch table
// (internal/plugins.DispatchMethodNames) plus the wildcard. A method not in
// this set is rejected the same way an unknown permission tag is.
var knownDispatchMethods = buildKnownDispatchMethods()

func buildKnownDispatchMethods() map[string]bool {
	known := map[string]bool{knownCrossPluginWildcard: true}
	for _, m := range plugins.DispatchMethodNames() {
		known[string(m)] = true
	}
	return known
}

// ParseAndValidate decodes raw YAML bytes and validates them into a
// PluginManifest, or returns a precise *apperr.AppError.
func ParseAndValidate(data []byte) (*models.PluginManifest, error) {
	var raw models.RawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeManifestInvalidType, "manifest is not valid YAML", err)
	}
	return Validate(&raw)
}

// Validate checks a decoded RawManifest against the closed vocabularies and
// produces a typed PluginManifest.
func Validate(raw *models.RawManifest) (*models.PluginManifest, error) {
	for _, entry := range raw.CrossPluginAccess {
		if entry.Target == "" {
			return nil, apperr.ManifestMissingField("cross_plugin_access.target")
		}
		for _, method := range entry.Methods {
			if !knownDispatchMethods[method] {
				return nil, apperr.ManifestBadCrossPluginAccess(entry.Target, method)
			}
		}
	}

	if err := validate.Struct(raw); err != nil {
		return nil, translateStructError(err)
	}

	safeName := raw.SafeName
	if safeName == "" {
		safeName = safeNameFromDisplay(raw.Name)
	}

	permSet := make(map[models.Permission]bool, len(raw.Permissions))
	seen := make(map[string]bool, len(raw.Permissions))
	for _, tag := range raw.Permissions {
		if seen[tag] {
			continue // duplicated permissions are deduplicated, not rejected
		}
		seen[tag] = true
		p := models.Permission(tag)
		if !models.KnownPermissions[p] {
			return nil, apperr.ManifestUnknownPermission(tag)
		}
		permSet[p] = true
	}

	category := models.PluginCategory(raw.Category)
	if !models.KnownCategories[category] {
		return nil, apperr.ManifestUnknownCategory(raw.Category)
	}

	return &models.PluginManifest{
		Name:              raw.Name,
		SafeName:          safeName,
		Version:           raw.Version,
		Author:            raw.Author,
		Type:              models.PluginType(raw.Type),
		Entry:             raw.Entry,
		Permissions:       permSet,
		UISlots:           raw.UISlots,
		Category:          category,
		CrossPluginAccess: raw.CrossPluginAccess,
	}, nil
}

func safeNameFromDisplay(name string) string {
	lower := strings.ToLower(name)
	return strings.ReplaceAll(strings.Join(strings.Fields(lower), "-"), "_", "-")
}

func translateStructError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperr.Wrap(apperr.ErrCodeManifestInvalidType, "manifest failed validation", err)
	}
	first := verrs[0]
	field := strings.ToLower(first.Field())
	switch first.Tag() {
	case "required":
		return apperr.ManifestMissingField(field)
	case "oneof":
		return apperr.ManifestInvalidType(field)
	default:
		return apperr.ManifestInvalidType(field)
	}
}
