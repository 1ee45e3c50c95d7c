// Package modelutil provides the query and evaluation helpers the pass
// pipeline shares: asset/field/container lookups and a partial evaluator
// over literal terms.
package modelutil

import (
	"fmt"

	"github.com/gridbugs/archetype-lang/internal/model"
)

// GetAsset returns the asset declaration named name, or an error if it is
// not declared — used by passes instead of Model.Asset so a malformed
// reference becomes a reported diagnostic rather than a nil-pointer panic.
func GetAsset(m *model.Model, name string) (*model.AssetDecl, error) {
	if a := m.Asset(name); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("unknown asset %q", name)
}

// GetAssetKey returns the name of the field that serves as asset's
// collection key, as recorded in its KeyField.
func GetAssetKey(a *model.AssetDecl) string {
	return a.KeyField
}

// GetFieldContainer returns the declared Type of field on asset, or nil if
// no such field exists.
func GetFieldContainer(a *model.AssetDecl, field string) model.Type {
	for _, f := range a.Fields {
		if f.Name == field {
			return f.Type
		}
	}
	return nil
}

// IsPartition reports whether asset is partitioned by another (its
// Partition field names the parent asset's field it partitions).
func IsPartition(a *model.AssetDecl) bool { return a.Partition != "" }

// IsAssetSingleField reports whether remove_asset chose to lower asset to
// a single storage field rather than a keyed collection; this is only
// decidable after Cohort E has run and Shape has been assigned.
func IsAssetSingleField(a *model.AssetDecl) bool {
	return a.Shape == model.AssetSingleField
}

// IsAssetMap reports whether asset lowers to a map or big_map shape.
func IsAssetMap(a *model.AssetDecl) bool {
	return a.Shape == model.AssetMap || a.Shape == model.AssetBigMap
}

// GetPartitions returns every asset in m that partitions parent.
func GetPartitions(m *model.Model, parent string) []*model.AssetDecl {
	var out []*model.AssetDecl
	for _, a := range m.Assets {
		if a.Partition != "" && a.Partition == parent {
			out = append(out, a)
		}
	}
	return out
}

// RetrieveProperty finds the named specification formula attached to fn, if
// any.
func RetrieveProperty(m *model.Model, fn, name string) *model.SpecDecl {
	for _, s := range m.Specs {
		if s.Function == fn && s.Name == name {
			return s
		}
	}
	return nil
}

// RetrieveAllProperties returns every specification formula attached to fn.
func RetrieveAllProperties(m *model.Model, fn string) []*model.SpecDecl {
	var out []*model.SpecDecl
	for _, s := range m.Specs {
		if s.Function == fn {
			out = append(out, s)
		}
	}
	return out
}

// ExtractKeyValueFromMasset splits a RecordLit built for asset into its key
// term and the remaining fields as a fresh RecordLit, the shape Cohort E's
// remove_asset needs when it lowers an AssetCall's argument into a
// container op's (key, value) pair.
func ExtractKeyValueFromMasset(a *model.AssetDecl, lit *model.RecordLit) (key model.Term, rest *model.RecordLit) {
	fields := make([]model.RecordField, 0, len(lit.Fields))
	for _, f := range lit.Fields {
		if f.Name == a.KeyField {
			key = f.Value
			continue
		}
		fields = append(fields, f)
	}
	rest = &model.RecordLit{TermBase: lit.TermBase, TypeName: lit.TypeName, Fields: fields}
	return key, rest
}
