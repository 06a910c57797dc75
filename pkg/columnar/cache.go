package columnar

type columnKey struct {
	store    *MutationStore
	position int
}

// ColumnCache keeps decompressed columns for the lifetime of one request.
// It is not safe for concurrent use and must not outlive the request.
type ColumnCache struct {
	cols map[columnKey][]byte
	hits int
}

func NewColumnCache() *ColumnCache {
	return &ColumnCache{cols: make(map[columnKey][]byte)}
}

func (c *ColumnCache) get(s *MutationStore, position int) ([]byte, bool) {
	col, ok := c.cols[columnKey{s, position}]
	if ok {
		c.hits++
	}
	return col, ok
}

func (c *ColumnCache) put(s *MutationStore, position int, col []byte) {
	c.cols[columnKey{s, position}] = col
}

// Len is the number of columns decoded so far.
func (c *ColumnCache) Len() int { return len(c.cols) }

// Hits counts lookups served without decompressing.
func (c *ColumnCache) Hits() int { return c.hits }
