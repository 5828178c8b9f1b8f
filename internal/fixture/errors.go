package fixture

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"groundtruth/internal/rpcwire"
)

// MissingDependencyError reports a create blocked because no parent record
// exists to satisfy a declared dependency. Create the parent first, pass an
// explicit id override, or use CreateTree.
type MissingDependencyError struct {
	Kind    Kind
	Missing Kind
	Column  string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("create %s: no %s on hand to fill %s", e.Kind, e.Missing, e.Column)
}

// ConstraintError is a database integrity violation the application passed
// through. Message holds the server's text exactly as received; callers that
// assert on driver prose depend on that.
type ConstraintError struct {
	Op         string
	Kind       Kind
	EntityID   string
	SQLState   string
	Constraint string
	Table      string
	Message    string
	cause      error
}

func (e *ConstraintError) Error() string { return e.Message }

func (e *ConstraintError) Unwrap() error { return e.cause }

// ForeignKey reports a foreign key violation, the signature of deleting a
// parent that still has children.
func (e *ConstraintError) ForeignKey() bool { return e.SQLState == "23503" }

// NotNull reports a required column left empty.
func (e *ConstraintError) NotNull() bool { return e.SQLState == "23502" }

// Unique reports a duplicate key.
func (e *ConstraintError) Unique() bool { return e.SQLState == "23505" }

// asConstraint classifies an RPC failure as a ConstraintError when the
// server attached a SQLSTATE in class 23 (integrity violations).
func asConstraint(op string, kind Kind, id string, err error) (*ConstraintError, bool) {
	var call *rpcwire.CallError
	if !errors.As(err, &call) {
		return nil, false
	}
	if !strings.HasPrefix(call.Data.SQLState, "23") {
		return nil, false
	}
	return &ConstraintError{
		Op:         op,
		Kind:       kind,
		EntityID:   id,
		SQLState:   call.Data.SQLState,
		Constraint: call.Data.Constraint,
		Table:      call.Data.Table,
		Message:    call.Message,
		cause:      call,
	}, true
}

// isGone reports whether the server said the record no longer exists.
func isGone(err error) bool {
	var call *rpcwire.CallError
	if !errors.As(err, &call) {
		return false
	}
	return call.Status == http.StatusNotFound || call.Code == rpcwire.CodeNotFound
}
