package rbac

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Catalog holds the set of known rights for a request, immutable once built.
// It is the leaf dependency everything else resolves right ids against.
type Catalog struct {
	byID    map[int64]Right
	byName  map[string]Right
	ordered []Right
}

// NewCatalog builds a catalog from the loaded rights. The listing order is
// collated case-insensitively so mixed-case human-entered names sort the way
// administrators expect in the matrix header.
func NewCatalog(rights []Right) *Catalog {
	c := &Catalog{
		byID:    make(map[int64]Right, len(rights)),
		byName:  make(map[string]Right, len(rights)),
		ordered: append([]Right(nil), rights...),
	}
	for _, right := range rights {
		c.byID[right.ID] = right
		c.byName[right.Name] = right
	}
	coll := collate.New(language.Und, collate.Loose)
	coll.Sort(collationAdapter(c.ordered))
	return c
}

// Right looks a right up by id.
func (c *Catalog) Right(id int64) (Right, bool) {
	right, ok := c.byID[id]
	return right, ok
}

// RightByName looks a right up by its unique name.
func (c *Catalog) RightByName(name string) (Right, bool) {
	right, ok := c.byName[name]
	return right, ok
}

// Rights returns all rights in collated name order.
func (c *Catalog) Rights() []Right {
	return c.ordered
}

// Len returns the catalog size.
func (c *Catalog) Len() int {
	return len(c.byID)
}

type collationAdapter []Right

func (a collationAdapter) Len() int           { return len(a) }
func (a collationAdapter) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a collationAdapter) Bytes(i int) []byte { return []byte(a[i].Name) }
