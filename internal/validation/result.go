package validation

type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonMissingKey        Reason = "missing-key"
	ReasonMissingBucket     Reason = "missing-bucket"
	ReasonNotFound          Reason = "not-found"
	ReasonUnreachable       Reason = "unreachable"
	ReasonBackendError      Reason = "backend-error"
	ReasonIndeterminate     Reason = "indeterminate"
	ReasonMissingPermission Reason = "missing-permission"
	ReasonBadName           Reason = "bad-name"
)

const (
	CheckPath           = "path-exists"
	CheckBucket         = "bucket-exists"
	CheckRolePermission = "role-permission"
	CheckRoleName       = "role-name-format"
	CheckTemplateRole   = "template-role-permission"
	CheckRemoteFile     = "remote-file-exists"
)

// Result is the outcome of one check against one target. Advisory results
// are reported but only count towards the gate in strict mode.
type Result struct {
	CheckName string
	Target    string
	Passed    bool
	Reason    Reason
	Detail    string
	Advisory  bool
}

func pass(check, target, detail string) Result {
	return Result{CheckName: check, Target: target, Passed: true, Reason: ReasonOK, Detail: detail}
}

func fail(check, target string, reason Reason, detail string) Result {
	return Result{CheckName: check, Target: target, Reason: reason, Detail: detail}
}

// Gate is the logical AND of every non-advisory result, and of advisory
// results too when strict is set. An empty batch passes.
func Gate(results []Result, strict bool) bool {
	for _, r := range results {
		if r.Advisory && !strict {
			continue
		}
		if !r.Passed {
			return false
		}
	}
	return true
}

// Report is the batch of results produced by one suite run.
type Report struct {
	Results []Result
}

func (r *Report) add(results ...Result) {
	r.Results = append(r.Results, results...)
}

func (r *Report) Passed(strict bool) bool {
	return Gate(r.Results, strict)
}

// Failed returns the results that did not pass, advisory ones included.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}
