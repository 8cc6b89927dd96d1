package cms

// Well-known archive entry names (spec.md §6 "Archive layout"). Bundles and
// drivers each need more independently-lazy blobs than spec.md's layout
// table lists by name; the extra names are a deliberate, harmless
// deviation documented in DESIGN.md — nothing outside this package reads a
// raw archive entry by name, so the split is invisible to the Sink/Source
// API.
const (
	blobIndex          = "index.json"
	blobTitles         = "titles.json"
	blobKBArticles     = "kbarticle-index.json"
	blobPrerequisites  = "prerequisites-list.json"
	blobBundles        = "bundles.json"         // BundlesIndex: parent -> children
	blobBundlesReverse = "bundles-reverse.json" // IsBundledTable: child -> parents
	blobProducts       = "product-index.json"
	blobClassification = "classification-index.json"
	blobFilesByHash    = "files-index.json"
	blobFilesByUpdate  = "update-files-index.json"
	blobSuperseded     = "superseded-index.json"

	blobDriversMetadata    = "drivers-index/metadata.json"
	blobDriversDriverToIDs = "drivers-index/driver-to-metadata-map.json"
	blobDriversHardwareID  = "drivers-index/hardware-id-index.json"
)
