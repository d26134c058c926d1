package kite

import "sync"

// instrumentMapper caches exchange:symbol -> instrument token lookups; the
// historical endpoint only accepts tokens.
type instrumentMapper struct {
	symbolToToken map[string]int
	mu            sync.RWMutex
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{symbolToToken: make(map[string]int)}
}

func (im *instrumentMapper) addMapping(instrument string, token int) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.symbolToToken[instrument] = token
}

func (im *instrumentMapper) getToken(instrument string) (int, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	token, exists := im.symbolToToken[instrument]
	return token, exists
}
