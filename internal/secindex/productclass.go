package secindex

import (
	"github.com/mswsus/cms/internal/identity"
	"github.com/mswsus/cms/pkg/archive"
)

// ProductClassIndex maps an update's index to the Product and Classification
// category indexes it belongs to, derived by walking the update's
// prerequisites for category-kind GUIDs (spec.md §4.4
// "Product/classification index": "derived from Prerequisites at ingest
// time, not carried on the wire record itself").
type ProductClassIndex struct {
	baselineEnd identity.Index
	baseline    *ProductClassIndex

	products        map[identity.Index][]identity.Index // Writing state
	classifications map[identity.Index][]identity.Index // Writing state

	productsLazy        *Lazy[map[identity.Index][]identity.Index]
	classificationsLazy *Lazy[map[identity.Index][]identity.Index]
}

// NewProductClassIndexForWriting creates an empty index for the Writing
// state.
func NewProductClassIndexForWriting() *ProductClassIndex {
	return &ProductClassIndex{
		products:        make(map[identity.Index][]identity.Index),
		classifications: make(map[identity.Index][]identity.Index),
	}
}

// NewProductClassIndexForReading creates an index for the Reading state.
func NewProductClassIndexForReading(reader *archive.Reader, productsBlob, classificationsBlob string, baselineEnd identity.Index, baseline *ProductClassIndex) *ProductClassIndex {
	idx := &ProductClassIndex{baselineEnd: baselineEnd, baseline: baseline}
	idx.productsLazy = NewLazy(func() (map[identity.Index][]identity.Index, error) {
		return loadJSON[map[identity.Index][]identity.Index](reader, productsBlob)
	})
	idx.classificationsLazy = NewLazy(func() (map[identity.Index][]identity.Index, error) {
		return loadJSON[map[identity.Index][]identity.Index](reader, classificationsBlob)
	})

	return idx
}

// PutDerived records the Product and Classification category indexes
// derived for update i. Writing state only; the caller (the ingest sink)
// is responsible for the derivation itself, since it alone knows each
// prerequisite GUID's identity.Kind.
func (idx *ProductClassIndex) PutDerived(i identity.Index, products, classifications []identity.Index) {
	if len(products) > 0 {
		idx.products[i] = products
	}

	if len(classifications) > 0 {
		idx.classifications[i] = classifications
	}
}

// Products resolves i's product categories, recursing into the baseline.
func (idx *ProductClassIndex) Products(i identity.Index) ([]identity.Index, bool, error) {
	m, err := idx.productsLazy.Get()
	if err != nil {
		return nil, false, err
	}

	return resolve(m, i, idx.baselineEnd, idx.baselineProducts)
}

func (idx *ProductClassIndex) baselineProducts(i identity.Index) ([]identity.Index, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	return idx.baseline.Products(i)
}

// Classifications resolves i's classification categories, recursing into
// the baseline.
func (idx *ProductClassIndex) Classifications(i identity.Index) ([]identity.Index, bool, error) {
	m, err := idx.classificationsLazy.Get()
	if err != nil {
		return nil, false, err
	}

	return resolve(m, i, idx.baselineEnd, idx.baselineClassifications)
}

func (idx *ProductClassIndex) baselineClassifications(i identity.Index) ([]identity.Index, bool, error) {
	if idx.baseline == nil {
		return nil, false, nil
	}

	return idx.baseline.Classifications(i)
}

// SerializeProducts returns this archive's own update->products entries as
// JSON (spec.md I7).
func (idx *ProductClassIndex) SerializeProducts() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.products, idx.baselineEnd))
}

// SerializeClassifications returns this archive's own
// update->classifications entries as JSON (spec.md I7).
func (idx *ProductClassIndex) SerializeClassifications() ([]byte, error) {
	return marshalJSON(stripBaseline(idx.classifications, idx.baselineEnd))
}
