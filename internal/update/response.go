package update

// TryOutcome classifies a submission
type TryOutcome string

const (
	// OutcomeFailParameters means the request was invalid and nothing was started
	OutcomeFailParameters TryOutcome = "FAIL_PARAMETERS"

	// OutcomeFailBusy means the in-flight run could offer none of the requested work
	OutcomeFailBusy TryOutcome = "FAIL_BUSY"

	// OutcomeFailURValues means the request needs a fresh lookup but the in-flight
	// run was started without one
	OutcomeFailURValues TryOutcome = "FAIL_UR_VALUES"

	// OutcomeSuccessStarted means a new run was started with the requested flags
	OutcomeSuccessStarted TryOutcome = "SUCCESS_STARTED"

	// OutcomeSuccessInProgress means the in-flight run does exactly the requested work
	OutcomeSuccessInProgress TryOutcome = "SUCCESS_INPROGRESS"

	// OutcomeMixedSuccess means the in-flight run does more, or less, than requested
	OutcomeMixedSuccess TryOutcome = "MIXED_SUCCESS"
)

// IsSuccess reports whether the caller joined or started a run
func (o TryOutcome) IsSuccess() bool {
	switch o {
	case OutcomeSuccessStarted, OutcomeSuccessInProgress, OutcomeMixedSuccess:
		return true
	default:
		return false
	}
}

// TryResponse reports what a submission was granted. It is not a promise:
// the result of the run is observed later through Status or a callback.
type TryResponse struct {
	Result TryOutcome `json:"result"`

	// FlagsRequested are the flags the caller asked for, with Lookup forced on
	// when there was no usable previous lookup
	FlagsRequested PhaseFlags `json:"flagsRequested"`

	// FlagsAfter are the flags of the run the caller is attached to
	FlagsAfter PhaseFlags `json:"flagsAfter"`

	// CallbacksQueued is true when the supplied callbacks will run on completion
	CallbacksQueued bool `json:"callbacksQueued"`
}

// classifyJoin compares what a joining caller asked for with what the run
// will do afterwards
func classifyJoin(requested, after PhaseFlags) TryOutcome {
	if after == requested {
		return OutcomeSuccessInProgress
	}
	if !requested.Intersect(after).Any() {
		return OutcomeFailBusy
	}
	return OutcomeMixedSuccess
}
