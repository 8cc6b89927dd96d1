package cms

import (
	json "github.com/goccy/go-json"

	"github.com/mswsus/cms/internal/identity"
)

// archiveVersion is the only supported index.json Version (spec.md §6).
const archiveVersion = 1

// Filter is the optional producer-set query scope persisted into
// index.json (spec.md §6, §4.9 setQueryFilter): never interpreted by the
// store itself, just carried so a reopened archive remembers what it was
// built to contain.
type Filter struct {
	Products        []string `json:"products,omitempty"`
	Classifications []string `json:"classifications,omitempty"`
	Anchor          string   `json:"anchor,omitempty"`
	IsCategories    bool     `json:"is_categories,omitempty"`
}

// indexJSON is the on-disk shape of the archive's mandatory index.json
// entry (spec.md §6 "index.json top-level fields").
type indexJSON struct {
	Version              int                             `json:"version"`
	Checksum             string                          `json:"checksum"`
	BaselineChecksum     string                          `json:"baseline_checksum,omitempty"`
	BaselineIndexesEnd   identity.Index                  `json:"baseline_indexes_end"`
	DeltaIndex           uint64                          `json:"delta_index"`
	Filter               *Filter                         `json:"filter,omitempty"`
	CategoriesAnchor     string                          `json:"categories_anchor,omitempty"`
	UpstreamSource       string                          `json:"upstream_source,omitempty"`
	UpstreamAccountName  string                          `json:"upstream_account_name,omitempty"`
	UpstreamAccountGUID  string                          `json:"upstream_account_guid,omitempty"`
	IdentityAndIndexList []identity.Entry                `json:"identity_and_index_list"`
	UpdateTypeMap        map[identity.Index]identity.Kind `json:"update_type_map"`

	// ProductsTree is serialized but never constructed or consumed by the
	// core store (spec.md §9 Open Questions: "leave it round-trippable but
	// unused"). Kept as raw JSON so a producer that does populate it
	// round-trips losslessly through a store that does not understand it.
	ProductsTree json.RawMessage `json:"products_tree,omitempty"`
}

func marshalIndexJSON(v indexJSON) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalIndexJSON(data []byte) (indexJSON, error) {
	var v indexJSON

	if err := json.Unmarshal(data, &v); err != nil {
		return indexJSON{}, err
	}

	return v, nil
}
