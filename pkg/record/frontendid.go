package record

import "fmt"

// FrontendID pairs the interned handles of a card and a profile so a single
// integer can travel through a fill request. At most one half is normally
// set; zero means "none".
type FrontendID struct {
	CardID    int64
	ProfileID int64
}

const frontendHalfMax = int64(^uint32(0))

// Pack folds the pair into one int64, card in the high half and profile in
// the low half. Either half outside [0, 2^32-1] is an error rather than a
// silent truncation.
func (id FrontendID) Pack() (int64, error) {
	if id.CardID < 0 || id.CardID > frontendHalfMax {
		return 0, fmt.Errorf("record: card id %d outside the packable range", id.CardID)
	}
	if id.ProfileID < 0 || id.ProfileID > frontendHalfMax {
		return 0, fmt.Errorf("record: profile id %d outside the packable range", id.ProfileID)
	}
	return int64(uint64(id.CardID)<<32 | uint64(id.ProfileID)), nil
}

// UnpackFrontendID splits a packed id back into its halves.
func UnpackFrontendID(packed int64) FrontendID {
	v := uint64(packed)
	return FrontendID{
		CardID:    int64(v >> 32),
		ProfileID: int64(v & uint64(^uint32(0))),
	}
}
