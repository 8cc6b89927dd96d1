package wireformat

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"

	"github.com/mswsus/cms/internal/identity"
)

// zeroGUID is the all-zeros sentinel appended to an AtLeastOne prerequisite's
// GUID list on-disk to mark IsCategory (spec.md §9).
var zeroGUID uuid.UUID

// Parse decodes raw WSUS-style update metadata XML into a Record. kind comes
// from the over-the-wire envelope (spec.md §4.9 addUpdate routes by kind
// before parsing); identity.Revision is likewise supplied by the caller from
// the envelope, not re-derived from the XML.
//
// XML is navigated with XPath via github.com/antchfx/xmlquery rather than
// hand-rolled encoding/xml struct tags: the schema has several
// optional/repeating sibling shapes (Prerequisite vs. AtLeastOne, present or
// absent DriverMetadata) that XPath selection expresses more directly than
// a fixed Go struct tree would.
func Parse(id identity.Identity, kind identity.Kind, xml []byte) (Record, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(xml))
	if err != nil {
		return Record{}, fmt.Errorf("parsing update xml: %w", err)
	}

	rec := Record{
		Identity: id,
		Kind:     kind,
		XML:      xml,
	}

	if n := xmlquery.FindOne(doc, "//Title"); n != nil {
		rec.Title = strings.TrimSpace(n.InnerText())
	}

	if kind == identity.KindSoftwareUpdate {
		if n := xmlquery.FindOne(doc, "//KBArticleID"); n != nil {
			rec.KBArticle = strings.TrimSpace(n.InnerText())
		}
	}

	prereqs, err := parsePrerequisites(doc)
	if err != nil {
		return Record{}, fmt.Errorf("parsing prerequisites: %w", err)
	}

	rec.Prerequisites = prereqs

	for _, n := range xmlquery.Find(doc, "//BundledUpdates/UpdateID") {
		g, err := parseGUID(n.InnerText())
		if err != nil {
			return Record{}, fmt.Errorf("parsing bundled update id: %w", err)
		}

		rec.BundledChildren = append(rec.BundledChildren, identity.Identity{GUID: g})
	}

	for _, n := range xmlquery.Find(doc, "//Files/File") {
		rec.Files = append(rec.Files, FileRecord{
			Hash:     n.SelectAttr("Digest"),
			URL:      n.SelectAttr("Url"),
			FileName: n.SelectAttr("FileName"),
			Size:     parseInt64(n.SelectAttr("Size")),
		})
	}

	for _, n := range xmlquery.Find(doc, "//SupersededUpdates/UpdateID") {
		g, err := parseGUID(n.InnerText())
		if err != nil {
			return Record{}, fmt.Errorf("parsing superseded update id: %w", err)
		}

		rec.SupersededGUIDs = append(rec.SupersededGUIDs, g)
	}

	if kind == identity.KindDriverUpdate {
		items, err := parseDriverMetadata(doc)
		if err != nil {
			return Record{}, fmt.Errorf("parsing driver metadata: %w", err)
		}

		rec.DriverMetadata = items
	}

	return rec, nil
}

func parsePrerequisites(doc *xmlquery.Node) ([]Prerequisite, error) {
	var out []Prerequisite

	for _, n := range xmlquery.Find(doc, "//Prerequisites/*") {
		switch n.Data {
		case "Prerequisite":
			g, err := parseGUID(n.InnerText())
			if err != nil {
				return nil, err
			}

			out = append(out, NewSimplePrerequisite(g))
		case "AtLeastOne":
			isCategory := n.SelectAttr("IsCategory") == "true"

			var guids []uuid.UUID

			for _, c := range xmlquery.Find(n, "Prerequisite") {
				g, err := parseGUID(c.InnerText())
				if err != nil {
					return nil, err
				}

				guids = append(guids, g)
			}

			out = append(out, NewAtLeastOnePrerequisite(guids, isCategory))
		}
	}

	return out, nil
}

func parseDriverMetadata(doc *xmlquery.Node) ([]DriverMetadataItem, error) {
	var items []DriverMetadataItem

	for _, n := range xmlquery.Find(doc, "//DriverMetadata/Driver") {
		item := DriverMetadataItem{
			HardwareID: strings.ToLower(n.SelectAttr("HardwareID")),
			Class:      n.SelectAttr("Class"),
			Version: Version{
				Date:  n.SelectAttr("VersionDate"),
				Major: int32(parseInt64(firstVersionPart(n.SelectAttr("VersionNumber"), 0))),
				Minor: int32(parseInt64(firstVersionPart(n.SelectAttr("VersionNumber"), 1))),
				Build: int32(parseInt64(firstVersionPart(n.SelectAttr("VersionNumber"), 2))),
				Patch: int32(parseInt64(firstVersionPart(n.SelectAttr("VersionNumber"), 3))),
			},
		}

		for _, fs := range xmlquery.Find(n, "FeatureScore") {
			item.FeatureScores = append(item.FeatureScores, FeatureScore{
				OS:    fs.SelectAttr("OS"),
				Score: int32(parseInt64(fs.SelectAttr("Score"))),
			})
		}

		for _, c := range xmlquery.Find(n, "TargetComputerHardwareId") {
			g, err := parseGUID(c.InnerText())
			if err != nil {
				return nil, err
			}

			item.TargetComputerHardwareIDs = append(item.TargetComputerHardwareIDs, g)
		}

		for _, c := range xmlquery.Find(n, "DistributionComputerHardwareId") {
			g, err := parseGUID(c.InnerText())
			if err != nil {
				return nil, err
			}

			item.DistributionComputerHardwareIDs = append(item.DistributionComputerHardwareIDs, g)
		}

		items = append(items, item)
	}

	return items, nil
}

func parseGUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)

	g, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid guid %q: %w", s, err)
	}

	return g, nil
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func firstVersionPart(versionNumber string, idx int) string {
	parts := strings.Split(versionNumber, ".")
	if idx >= len(parts) {
		return "0"
	}

	return parts[idx]
}

// IsZeroGUID reports whether g is the all-zeros sentinel used to mark an
// AtLeastOne prerequisite as a category group in the on-disk encoding
// (spec.md §9).
func IsZeroGUID(g uuid.UUID) bool {
	return g == zeroGUID
}
