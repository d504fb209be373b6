package browse

import (
	"encoding/binary"
	"strconv"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

// resultCache memoizes filter results as catalog positions.
type resultCache struct {
	cache   *freecache.Cache
	metrics *metrics.Manager
}

func newResultCache(sizeMB int, metricsManager *metrics.Manager) *resultCache {
	return &resultCache{
		cache:   freecache.NewCache(sizeMB * 1024 * 1024),
		metrics: metricsManager,
	}
}

// cacheKey must change whenever the result can: revision is the favorites
// revision for the favorites category and 0 for every other one.
func cacheKey(category, search string, revision uint64) []byte {
	key := make([]byte, 0, len(category)+len(search)+24)
	key = append(key, category...)
	key = append(key, 0)
	key = append(key, search...)
	key = append(key, 0)
	key = strconv.AppendUint(key, revision, 10)
	return key
}

func (c *resultCache) get(key []byte) ([]int, bool) {
	value, err := c.cache.Get(key)
	if err != nil {
		c.countLookup("miss")
		return nil, false
	}

	positions, ok := decodePositions(value)
	if !ok {
		log.Warnf("browse cache: undecodable entry for key [%q], dropping", key)
		c.cache.Del(key)
		c.countLookup("miss")
		return nil, false
	}
	c.countLookup("hit")
	return positions, true
}

func (c *resultCache) set(key []byte, positions []int) {
	// entries are never stale, they are only evicted
	if err := c.cache.Set(key, encodePositions(positions), 0); err != nil {
		log.Debugf("browse cache: set key [%q]: %s", key, err)
	}
}

func (c *resultCache) countLookup(result string) {
	if c.metrics != nil {
		c.metrics.CounterQueryCacheLookups.WithLabelValues(result).Inc()
	}
}

func encodePositions(positions []int) []byte {
	buf := make([]byte, 0, len(positions)*2+1)
	buf = binary.AppendUvarint(buf, uint64(len(positions)))
	for _, pos := range positions {
		buf = binary.AppendUvarint(buf, uint64(pos))
	}
	return buf
}

func decodePositions(buf []byte) ([]int, bool) {
	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, false
	}
	buf = buf[n:]
	if count > uint64(len(buf)) {
		return nil, false
	}

	positions := make([]int, 0, count)
	for i := uint64(0); i < count; i++ {
		pos, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, false
		}
		positions = append(positions, int(pos))
		buf = buf[n:]
	}
	if len(buf) != 0 {
		return nil, false
	}
	return positions, true
}
