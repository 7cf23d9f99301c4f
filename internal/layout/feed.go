package layout

// FeedResult offsets.
const (
	FeedMantissaOffset     = 0
	FeedScaleOffset        = 8
	FeedNumSuccessOffset   = 12
	FeedMinResponsesOffset = 16
	FeedUpdatedAtOffset    = 20
	FeedMaxStalenessOffset = 28
	FeedResultSize         = 36
)

// FeedResult is the latest confirmed round of an oracle feed. The value is
// Mantissa / 10^Scale.
type FeedResult struct {
	Mantissa     int64
	Scale        uint32
	NumSuccess   uint32
	MinResponses uint32
	// UpdatedAt is the unix time of the confirmed round; zero means unset.
	UpdatedAt int64
	// MaxStaleness in seconds; zero disables the freshness check.
	MaxStaleness int64
}

// DecodeFeedResult reads a FeedResult from a tagged buffer.
func DecodeFeedResult(data []byte) (FeedResult, error) {
	b, err := body(data, FeedResultSize, "feed result")
	if err != nil {
		return FeedResult{}, err
	}
	return FeedResult{
		Mantissa:     i64(b, FeedMantissaOffset),
		Scale:        u32(b, FeedScaleOffset),
		NumSuccess:   u32(b, FeedNumSuccessOffset),
		MinResponses: u32(b, FeedMinResponsesOffset),
		UpdatedAt:    i64(b, FeedUpdatedAtOffset),
		MaxStaleness: i64(b, FeedMaxStalenessOffset),
	}, nil
}

// PutFeedResult writes f into an existing tagged buffer in place.
func PutFeedResult(data []byte, f FeedResult) error {
	b, err := body(data, FeedResultSize, "feed result")
	if err != nil {
		return err
	}
	putI64(b, FeedMantissaOffset, f.Mantissa)
	putU32(b, FeedScaleOffset, f.Scale)
	putU32(b, FeedNumSuccessOffset, f.NumSuccess)
	putU32(b, FeedMinResponsesOffset, f.MinResponses)
	putI64(b, FeedUpdatedAtOffset, f.UpdatedAt)
	putI64(b, FeedMaxStalenessOffset, f.MaxStaleness)
	return nil
}

// Encode returns a freshly tagged FeedResult.
func (f FeedResult) Encode() []byte {
	buf := alloc(FeedResultTag, FeedResultSize)
	_ = PutFeedResult(buf, f)
	return buf
}
