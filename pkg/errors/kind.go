package errors

// Kind classifies failures reported by tools and the dispatch loop.
// Values are stable strings because they are shown to the model and to callers.
type Kind string

const (
	KindNone                 Kind = ""
	KindUnknownTool          Kind = "UnknownToolError"
	KindInvalidArguments     Kind = "InvalidArguments"
	KindAdapterExecution     Kind = "AdapterExecutionError"
	KindRiskBoundsViolation  Kind = "RiskBoundsViolation"
	KindStepLimitExceeded    Kind = "StepLimitExceeded"
	KindModelBackend         Kind = "ModelBackendError"
	KindDuplicateTradeIntent Kind = "DuplicateTradeIntent"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Recoverable reports whether the dispatch loop feeds this kind back to the model
// instead of ending the request.
func (k Kind) Recoverable() bool {
	switch k {
	case KindUnknownTool, KindInvalidArguments, KindAdapterExecution, KindDuplicateTradeIntent:
		return true
	default:
		return false
	}
}

var kindSentinels = []struct {
	kind     Kind
	sentinel error
}{
	// Order matters: the most specific classification wins.
	{KindRiskBoundsViolation, ErrRiskBoundsViolation},
	{KindDuplicateTradeIntent, ErrDuplicateTradeIntent},
	{KindUnknownTool, ErrUnknownTool},
	{KindInvalidArguments, ErrInvalidArguments},
	{KindStepLimitExceeded, ErrStepLimitExceeded},
	{KindModelBackend, ErrModelBackend},
	{KindAdapterExecution, ErrAdapterExecution},
}

// KindOf classifies err. Errors without a known sentinel in their chain are treated as
// adapter failures, since anything unclassified came from an external collaborator.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, ks := range kindSentinels {
		if Is(err, ks.sentinel) {
			return ks.kind
		}
	}
	return KindAdapterExecution
}

// Sentinel returns the sentinel error for a kind, or nil for KindNone.
func (k Kind) Sentinel() error {
	for _, ks := range kindSentinels {
		if ks.kind == k {
			return ks.sentinel
		}
	}
	return nil
}
