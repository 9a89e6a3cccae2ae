package market

import "fmt"

// engineState abstracts the subset of state manager functionality required by
// the listing ledger.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	listingPrefix   = []byte("market/listing/")
	metadataPrefix  = []byte("market/meta/")
	whitelistPrefix = []byte("market/whitelist/")
	listingSeqKey   = []byte("market/seq")
	listingIndexKey = []byte("market/listings/index")
	feePolicyKey    = []byte("market/params/fees")
)

func listingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", listingPrefix, id))
}

func metadataKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", metadataPrefix, id))
}

func whitelistKey(backend string) []byte {
	return []byte(fmt.Sprintf("%s%s", whitelistPrefix, backend))
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var listing Listing
	ok, err := e.state.KVGet(listingKey(id), &listing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownListing
	}
	return &listing, nil
}

func (e *Engine) storeListing(listing *Listing) error {
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return err
	}
	return e.state.KVPut(listingKey(sanitized.ID), sanitized)
}

func (e *Engine) loadMetadata(id uint64) (*ListingMetadata, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var meta ListingMetadata
	ok, err := e.state.KVGet(metadataKey(id), &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	return &meta, true, nil
}

func (e *Engine) storeMetadata(meta *ListingMetadata) error {
	if meta == nil {
		return errMetadataRequired
	}
	return e.state.KVPut(metadataKey(meta.ID), meta)
}

func (e *Engine) deleteListing(id uint64) error {
	if err := e.state.KVDelete(listingKey(id)); err != nil {
		return err
	}
	if err := e.state.KVDelete(metadataKey(id)); err != nil {
		return err
	}
	return e.removeFromIndex(id)
}

// nextListingID allocates the next identifier from the strictly increasing
// counter. Identifiers start at 1 and are never reused.
func (e *Engine) nextListingID() (uint64, error) {
	var seq uint64
	if _, err := e.state.KVGet(listingSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := e.state.KVPut(listingSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (e *Engine) activeIDs() ([]uint64, error) {
	var ids []uint64
	if _, err := e.state.KVGet(listingIndexKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *Engine) appendToIndex(id uint64) error {
	ids, err := e.activeIDs()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return e.state.KVPut(listingIndexKey, append(ids, id))
}

func (e *Engine) removeFromIndex(id uint64) error {
	ids, err := e.activeIDs()
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	return e.state.KVPut(listingIndexKey, filtered)
}
