package harvest

import (
	"fmt"
	"io"
	"os"
)

// Reporter prints the run summary and the detail of every failure
type Reporter struct {
	// Out receives the summary, Err the failure detail. Both default to
	// the process streams.
	Out io.Writer
	Err io.Writer
}

func (r *Reporter) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Reporter) err() io.Writer {
	if r.Err == nil {
		return os.Stderr
	}
	return r.Err
}

// ReportSummary prints both totals, listing each success with its row count
// and each failure by account and report.
func (r *Reporter) ReportSummary(s Summary) {
	w := r.out()
	fmt.Fprintf(w, "Total successful results: %d\n\n", len(s.Successes))
	if len(s.Successes) > 0 {
		fmt.Fprintln(w, "Successes:")
		for _, ok := range s.Successes {
			fmt.Fprintf(w, "\tcustomer_id : %s // query_name : %s // # results : %d\n",
				ok.Unit.AccountID, ok.Unit.Definition.Name, len(ok.Rows))
		}
	}

	fmt.Fprintf(w, "Total failed results: %d\n\n", len(s.Failures))
	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "\tcustomer_id : %s // query_name : %s\n",
				f.Unit.AccountID, f.Unit.Definition.Name)
		}
	}
}

// ReportFailures prints the error detail of every failure
func (r *Reporter) ReportFailures(failures []Failure) {
	if len(failures) == 0 {
		return
	}
	w := r.err()
	fmt.Fprintln(w, "Failures:")
	for _, f := range failures {
		writeFailure(w, f)
	}
}

func writeFailure(w io.Writer, f Failure) {
	account, name := f.Unit.AccountID, f.Unit.Definition.Name

	if apiErr, ok := f.APIError(); ok {
		fmt.Fprintf(w, "Request with ID \"%s\" failed with status \"%s\" for customer_id %s and query \"%s\" and includes the following errors:\n",
			apiErr.RequestID, apiErr.Code, account, name)
		if apiErr.Message != "" {
			fmt.Fprintf(w, "\tMessage: \"%s\"\n", apiErr.Message)
		}
		for _, e := range apiErr.Errors {
			fmt.Fprintf(w, "\tError with message \"%s\".\n", e.Message)
			for _, field := range e.FieldPath {
				fmt.Fprintf(w, "\t\tOn field: %s\n", field)
			}
		}
		return
	}

	if f.Structural() {
		fmt.Fprintf(w, "Unit for customer_id %s and query \"%s\" aborted: %v\n", account, name, f.Err)
		return
	}
	fmt.Fprintf(w, "Unit for customer_id %s and query \"%s\" failed: %v\n", account, name, f.Err)
}
