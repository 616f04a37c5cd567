package orchestrator

// Step is a coarse progress marker emitted while a workflow runs. Steps are
// informational; only the returned Outcome is authoritative.
type Step string

const (
	StepEncrypting         Step = "encrypting"
	StepSubmitting         Step = "submitting"
	StepConfirming         Step = "confirming"
	StepAwaitingDecryption Step = "awaiting_decryption"
	StepClaiming           Step = "claiming"
)

// Reporter receives workflow progress updates.
type Reporter interface {
	Report(workflow string, step Step)
}

// NopReporter discards all progress updates.
type NopReporter struct{}

func (NopReporter) Report(string, Step) {}
