package domain

// CongruenceReport captures whether a node's actual configuration matches
// the expected one.
type CongruenceReport struct {
	Node        Node
	Expected    Fingerprint
	Actual      *Fingerprint // nil when the node is unreachable
	IsCongruent bool
	Details     string
}

// CongruentReport builds a report for a node whose actual fingerprint
// matches the expected one.
func CongruentReport(node Node, expected Fingerprint) CongruenceReport {
	actual := expected
	return CongruenceReport{
		Node:        node,
		Expected:    expected,
		Actual:      &actual,
		IsCongruent: true,
		Details:     "system state matches expected configuration",
	}
}

// DriftedReport builds a report for a node whose actual fingerprint
// diverges from (or is absent relative to) the expected one.
func DriftedReport(node Node, expected Fingerprint, actual *Fingerprint, details string) CongruenceReport {
	return CongruenceReport{
		Node:        node,
		Expected:    expected,
		Actual:      actual,
		IsCongruent: false,
		Details:     details,
	}
}
