package chunkloader

type ClaimResult int

const (
	Success ClaimResult = iota
	AlreadyClaimed
	ClaimedByOther
	AtLimit
	Disabled
)

func (r ClaimResult) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case AlreadyClaimed:
		return "ALREADY_CLAIMED"
	case ClaimedByOther:
		return "CLAIMED_BY_OTHER"
	case AtLimit:
		return "AT_LIMIT"
	case Disabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// NotifyKey is the message key shown to the claiming actor. Display text is
// resolved by the transport layer.
func (r ClaimResult) NotifyKey() string {
	switch r {
	case Success:
		return "chunk.claimed"
	case AlreadyClaimed:
		return "chunk.already_claimed"
	case ClaimedByOther:
		return "chunk.claimed_by_other"
	case AtLimit:
		return "chunk.at_limit"
	case Disabled:
		return "chunk.disabled"
	default:
		return "chunk.unknown"
	}
}
