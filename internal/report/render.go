package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSON renders the summary as indented JSON, trailing newline included.
func JSON(s Summary) ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(out, '\n'), nil
}

// Markdown renders the summary for humans. Output is deterministic for a
// given summary, so runs can be diffed against each other.
func Markdown(s Summary) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# groundtruth run %s\n\n", s.RunID)
	if s.Events == 0 {
		fmt.Fprintf(&b, "No events recorded.\n")
		return b.Bytes()
	}
	fmt.Fprintf(&b, "%d events between %s and %s (%s).\n",
		s.Events,
		s.Start.UTC().Format(time.RFC3339),
		s.End.UTC().Format(time.RFC3339),
		s.End.Sub(s.Start))

	fmt.Fprintf(&b, "\n## Sessions\n\n")
	fmt.Fprintf(&b, "%d logins, %d reused, %d invalidated, %d rate limited.\n",
		s.Sessions.Logins, s.Sessions.Reused, s.Sessions.Invalidated, s.RateLimited)
	if len(s.Sessions.Roles) > 0 {
		fmt.Fprintf(&b, "\n| Role | Logins | Reused |\n|---|---:|---:|\n")
		for _, r := range s.Sessions.Roles {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", r.Role, r.Logins, r.Reused)
		}
	}

	fmt.Fprintf(&b, "\n## Fixtures\n\n")
	fmt.Fprintf(&b, "%d created, %d deleted, %d already gone at teardown.\n",
		s.Fixtures.Created, s.Fixtures.Deleted, s.Fixtures.Skipped)
	if len(s.Fixtures.Kinds) > 0 {
		fmt.Fprintf(&b, "\n| Kind | Created | Deleted |\n|---|---:|---:|\n")
		for _, k := range s.Fixtures.Kinds {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", k.Kind, k.Created, k.Deleted)
		}
	}

	fmt.Fprintf(&b, "\n## Verification\n\n")
	fmt.Fprintf(&b, "%d passed, %d failed.\n", s.Checks.Passed, s.Checks.Failed)
	if len(s.Checks.Failures) > 0 {
		fmt.Fprintf(&b, "\n| Table | Column | Expected | Got |\n|---|---|---|---|\n")
		for _, f := range s.Checks.Failures {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.Table, f.Column, f.Expected, f.Got)
		}
	}

	if len(s.Sweep.Tables) > 0 {
		fmt.Fprintf(&b, "\n## Sweep\n\n")
		fmt.Fprintf(&b, "%d rows removed.\n", s.Sweep.Rows)
		fmt.Fprintf(&b, "\n| Table | Rows |\n|---|---:|\n")
		for _, t := range s.Sweep.Tables {
			fmt.Fprintf(&b, "| %s | %d |\n", t.Table, t.Rows)
		}
	}

	return b.Bytes()
}
